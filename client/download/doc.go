// Package download writes bulk search exports to disk.
//
// [Save] copies a CSV body into a temporary file next to the destination
// and renames it into place once every check has passed, so a partially
// written export is never left at destPath:
//
//	err := download.Save(ctx, strings.NewReader(csv), int64(len(csv)), "/tmp/export.csv", logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(),
//	)
//
// Most callers go through Datalake.BulkSearchToFile, which forwards
// these options.
package download
