// Package phraseql ingests tabular files, infers a relational schema for
// each, materializes the data into a relational or document store, and
// translates a fixed set of phrase queries into SQL or aggregation
// pipelines.
//
// Supported input formats:
//   - CSV (.csv), TSV (.tsv)
//   - JSON arrays of objects (.json)
//   - Excel workbooks (.xlsx)
//   - Parquet (.parquet)
//
// Any input may additionally be compressed with gzip (.gz), bzip2 (.bz2),
// xz (.xz), or zstandard (.zst); the compression extension stacks on the
// format extension, as in "cars.csv.gz".
//
// Basic usage:
//
//	store, err := driver.OpenRelational(ctx, ":memory:", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	engine := phraseql.NewEngine(phraseql.Config{Relational: store})
//
//	source := phraseql.NewSource("cars.csv", data, model.BackendRelational)
//	dataset, skipped, err := engine.Ingest(ctx, source)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := engine.Query(ctx, "show cars which price larger than 20000")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, row := range result.Rows {
//		fmt.Println(row)
//	}
//
// Column types are inferred from the data: a column is an integer, float,
// or boolean only when every non-empty value parses as one, and text
// otherwise. Columns containing empty values are nullable.
//
// Queries are phrases matched against a closed template set, for example
// "show cars which price larger than 20000" or "count documents in iris
// grouped by species". A phrase outside the template set fails with
// ErrUnknownQuery rather than guessing at intent.
package phraseql
