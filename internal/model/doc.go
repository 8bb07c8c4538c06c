// Package model defines the data types shared across the crawler:
// URL lifecycle records, accepted page records, and crawl summaries.
//
// Types in this package are plain data with no behavior beyond small
// helpers. They are serialized both to the SQLite crawl database and to
// the JSON state snapshots, so field changes must stay backward
// compatible with previously written state.
package model
