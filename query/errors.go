package query

import "errors"

var ErrNoShards = errors.New("query: no shards configured")
