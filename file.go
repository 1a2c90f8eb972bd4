package phraseql

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/phraseql/phraseql/domain/model"
)

// FileFormat represents a supported input file format.
type FileFormat int

const (
	// FormatCSV is comma-delimited text with a header row.
	FormatCSV FileFormat = iota
	// FormatTSV is tab-delimited text with a header row.
	FormatTSV
	// FormatJSON is an array of flat JSON objects.
	FormatJSON
	// FormatXLSX is an Excel workbook; the first sheet is ingested.
	FormatXLSX
	// FormatParquet is an Apache Parquet file.
	FormatParquet
	// FormatUnsupported is any format the ingestor cannot parse.
	FormatUnsupported
)

// File format extensions
const (
	extCSV     = ".csv"
	extTSV     = ".tsv"
	extJSON    = ".json"
	extXLSX    = ".xlsx"
	extParquet = ".parquet"
)

// File format delimiters
const (
	csvDelimiter = ','
	tsvDelimiter = '\t'
)

// String returns the format name.
func (f FileFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatJSON:
		return "json"
	case FormatXLSX:
		return "xlsx"
	case FormatParquet:
		return "parquet"
	default:
		return "unsupported"
	}
}

// ParseFileFormat parses a format name as given by a caller ("csv",
// "json", ...).
func ParseFileFormat(s string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx":
		return FormatXLSX, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return FormatUnsupported, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// DetectFormat derives the format and compression from a file name,
// handling chained extensions such as "data.csv.gz".
func DetectFormat(fileName string) (FileFormat, CompressionType) {
	compression, stripped := detectCompression(fileName)

	switch strings.ToLower(filepath.Ext(stripped)) {
	case extCSV:
		return FormatCSV, compression
	case extTSV:
		return FormatTSV, compression
	case extJSON:
		return FormatJSON, compression
	case extXLSX:
		return FormatXLSX, compression
	case extParquet:
		return FormatParquet, compression
	default:
		return FormatUnsupported, compression
	}
}

// DatasetNameFromFile derives a normalized dataset name from a file name by
// stripping compression and format extensions.
func DatasetNameFromFile(fileName string) string {
	_, stripped := detectCompression(filepath.Base(fileName))
	stripped = strings.TrimSuffix(stripped, filepath.Ext(stripped))
	return model.NormalizeName(stripped)
}

// Source is one uploaded file handed to the ingestor: the raw bytes plus
// everything the transport layer knows about them.
type Source struct {
	// Name is the dataset name, usually derived from the file name.
	Name string
	// Data is the raw file content.
	Data []byte
	// Format is the file format.
	Format FileFormat
	// Compression is the compression applied on top of the format.
	Compression CompressionType
	// Backend is the store the dataset should be materialized into.
	Backend model.Backend
}

// NewSource builds a Source from an uploaded file, detecting format and
// compression from the file name.
func NewSource(fileName string, data []byte, backend model.Backend) *Source {
	format, compression := DetectFormat(fileName)
	return &Source{
		Name:        DatasetNameFromFile(fileName),
		Data:        data,
		Format:      format,
		Compression: compression,
		Backend:     backend,
	}
}

// parse decodes the source into a header and its records. Parse failures
// wrap ErrFormat; the caller decides what zero records mean.
func (s *Source) parse(ctx context.Context) (model.Header, []model.Record, error) {
	if s.Format == FormatUnsupported {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Name)
	}

	reader, closeReader, err := newDecompressionReader(bytes.NewReader(s.Data), s.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer closeReader() //nolint:errcheck // decompressor close failures don't invalidate parsed data

	switch s.Format {
	case FormatCSV:
		return parseDelimited(reader, csvDelimiter)
	case FormatTSV:
		return parseDelimited(reader, tsvDelimiter)
	case FormatJSON:
		return parseJSON(reader)
	case FormatXLSX:
		return parseXLSX(reader)
	case FormatParquet:
		return parseParquet(ctx, reader)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Format)
	}
}

// parseDelimited parses CSV or TSV content. The first row is the header.
// Records keep whatever field count the file gives them; the schema
// builder skips and counts rows that disagree with the header.
func parseDelimited(reader io.Reader, delimiter rune) (model.Header, []model.Record, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.FieldsPerRecord = -1 // row length mismatches are handled downstream

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header := model.NewHeader(rows[0])
	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, model.NewRecord(row))
	}
	return header, records, nil
}

// parseJSON parses an array of flat JSON objects. The header is the union
// of keys in first-seen order; objects missing a key contribute an empty
// value for it. Decoding walks the token stream because map decoding would
// lose the key order inside each object.
func parseJSON(reader io.Reader) (model.Header, []model.Record, error) {
	decoder := json.NewDecoder(reader)

	first, err := decoder.Token()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var header model.Header
	index := make(map[string]int)
	var rows []map[string]string

	readObject := func() (map[string]string, error) {
		row := make(map[string]string)
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected token %v in object", keyToken)
			}
			var raw json.RawMessage
			if err := decoder.Decode(&raw); err != nil {
				return nil, err
			}
			if _, known := index[key]; !known {
				index[key] = len(header)
				header = append(header, key)
			}
			row[key] = jsonScalarString(raw)
		}
		// consume the closing brace
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return row, nil
	}

	switch delim, ok := first.(json.Delim); {
	case ok && delim == '[':
		for decoder.More() {
			objStart, err := decoder.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			if d, ok := objStart.(json.Delim); !ok || d != '{' {
				return nil, nil, fmt.Errorf("%w: expected object in array, got %v", ErrFormat, objStart)
			}
			row, err := readObject()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			rows = append(rows, row)
		}
		// consume the closing bracket so a truncated array is an error
		if _, err := decoder.Token(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	case ok && delim == '{':
		// A single flat object is accepted as a one-row dataset.
		row, err := readObject()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		rows = append(rows, row)
	default:
		return nil, nil, fmt.Errorf("%w: expected JSON array of objects", ErrFormat)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		record := make(model.Record, len(header))
		for key, value := range row {
			record[index[key]] = value
		}
		records = append(records, record)
	}
	return header, records, nil
}

// jsonScalarString renders a raw JSON scalar as the string form the type
// inferencer expects: numbers and booleans keep their literal text, strings
// are unquoted, null becomes empty.
func jsonScalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// parseXLSX parses the first sheet of an Excel workbook.
func parseXLSX(reader io.Reader) (model.Header, []model.Record, error) {
	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer workbook.Close() //nolint:errcheck // read-only workbook

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header := model.NewHeader(rows[0])
	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells; pad to the header width so
		// short rows read as missing values instead of malformed rows.
		record := make(model.Record, len(header))
		copy(record, row)
		records = append(records, record)
	}
	return header, records, nil
}

// parseParquet parses Parquet content via the Arrow reader. Parquet needs
// random access, so the stream is buffered in full first.
func parseParquet(ctx context.Context, reader io.Reader) (model.Header, []model.Record, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(data) == 0 {
		return nil, nil, nil
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer pqReader.Close() //nolint:errcheck // read-only reader

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	arrowTable, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer arrowTable.Release()

	schema := arrowTable.Schema()
	header := make(model.Header, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	tableReader := array.NewTableReader(arrowTable, 0)
	defer tableReader.Release()

	var records []model.Record
	for tableReader.Next() {
		batch := tableReader.Record()
		numRows := batch.NumRows()
		for i := range numRows {
			row := make(model.Record, batch.NumCols())
			for j, col := range batch.Columns() {
				row[j] = arrowValueString(col, int(i))
			}
			records = append(records, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return header, records, nil
}

// arrowValueString renders one arrow array element as the raw string form
// the type inferencer expects. Null values become empty strings.
func arrowValueString(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return ""
	}
	switch arr := col.(type) {
	case *array.String:
		return arr.Value(i)
	case *array.LargeString:
		return arr.Value(i)
	case *array.Int64:
		return strconv.FormatInt(arr.Value(i), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(arr.Value(i)), 10)
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(i), 'g', -1, 64)
	case *array.Float32:
		return strconv.FormatFloat(float64(arr.Value(i)), 'g', -1, 32)
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(i))
	default:
		return col.ValueStr(i)
	}
}
