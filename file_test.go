package phraseql

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/phraseql/phraseql/domain/model"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fileName        string
		wantFormat      FileFormat
		wantCompression CompressionType
	}{
		{fileName: "cars.csv", wantFormat: FormatCSV, wantCompression: CompressionNone},
		{fileName: "cars.CSV", wantFormat: FormatCSV, wantCompression: CompressionNone},
		{fileName: "cars.tsv", wantFormat: FormatTSV, wantCompression: CompressionNone},
		{fileName: "cars.json", wantFormat: FormatJSON, wantCompression: CompressionNone},
		{fileName: "cars.xlsx", wantFormat: FormatXLSX, wantCompression: CompressionNone},
		{fileName: "cars.parquet", wantFormat: FormatParquet, wantCompression: CompressionNone},
		{fileName: "cars.csv.gz", wantFormat: FormatCSV, wantCompression: CompressionGZ},
		{fileName: "cars.csv.bz2", wantFormat: FormatCSV, wantCompression: CompressionBZ2},
		{fileName: "cars.json.xz", wantFormat: FormatJSON, wantCompression: CompressionXZ},
		{fileName: "cars.tsv.zst", wantFormat: FormatTSV, wantCompression: CompressionZSTD},
		{fileName: "cars.txt", wantFormat: FormatUnsupported, wantCompression: CompressionNone},
		{fileName: "cars", wantFormat: FormatUnsupported, wantCompression: CompressionNone},
		{fileName: "cars.gz", wantFormat: FormatUnsupported, wantCompression: CompressionGZ},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			t.Parallel()

			format, compression := DetectFormat(tt.fileName)
			if format != tt.wantFormat || compression != tt.wantCompression {
				t.Errorf("DetectFormat(%q) = (%v, %v), want (%v, %v)",
					tt.fileName, format, compression, tt.wantFormat, tt.wantCompression)
			}
		})
	}
}

func TestDatasetNameFromFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fileName string
		want     string
	}{
		{fileName: "cars.csv", want: "cars"},
		{fileName: "cars.csv.gz", want: "cars"},
		{fileName: "Iris-Data.json", want: "iris_data"},
		{fileName: "/tmp/upload/cars.tsv.zst", want: "cars"},
		{fileName: "2024 sales.xlsx", want: "ds_2024_sales"},
	}

	for _, tt := range tests {
		if got := DatasetNameFromFile(tt.fileName); got != tt.want {
			t.Errorf("DatasetNameFromFile(%q) = %q, want %q", tt.fileName, got, tt.want)
		}
	}
}

func TestParseFileFormat(t *testing.T) {
	t.Parallel()

	if _, err := ParseFileFormat("yaml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFileFormat(yaml) error = %v, want ErrUnsupportedFormat", err)
	}
	format, err := ParseFileFormat(" CSV ")
	if err != nil || format != FormatCSV {
		t.Errorf("ParseFileFormat(CSV) = (%v, %v), want (csv, nil)", format, err)
	}
}

func TestSourceParseCSV(t *testing.T) {
	t.Parallel()

	data := []byte("id,make,price\n1,toyota,20000\n2,honda,22000\n")
	source := NewSource("cars.csv", data, model.BackendRelational)

	header, records, err := source.parse(context.Background())
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	if !header.Equal(model.NewHeader([]string{"id", "make", "price"})) {
		t.Errorf("header = %v", header)
	}
	if len(records) != 2 || !records[0].Equal(model.NewRecord([]string{"1", "toyota", "20000"})) {
		t.Errorf("records = %v", records)
	}
}

func TestSourceParseTSV(t *testing.T) {
	t.Parallel()

	data := []byte("a\tb\n1\t2\n")
	source := NewSource("data.tsv", data, model.BackendRelational)

	header, records, err := source.parse(context.Background())
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	if !header.Equal(model.NewHeader([]string{"a", "b"})) || len(records) != 1 {
		t.Errorf("header = %v, records = %v", header, records)
	}
}

func TestSourceParseCSVKeepsRaggedRows(t *testing.T) {
	t.Parallel()

	// Ragged rows survive parsing; the schema builder decides their fate.
	data := []byte("a,b\n1,2\n3\n")
	source := NewSource("data.csv", data, model.BackendRelational)

	_, records, err := source.parse(context.Background())
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if len(records[1]) != 1 {
		t.Errorf("ragged record = %v, want single field", records[1])
	}
}

func TestSourceParseJSON(t *testing.T) {
	t.Parallel()

	t.Run("array of objects with union header", func(t *testing.T) {
		t.Parallel()

		data := []byte(`[
			{"name": "alice", "age": 30},
			{"name": "bob", "city": "oslo", "age": 25}
		]`)
		source := NewSource("people.json", data, model.BackendDocument)

		header, records, err := source.parse(context.Background())
		if err != nil {
			t.Fatalf("parse error = %v", err)
		}

		// union of keys in first-seen order
		if !header.Equal(model.NewHeader([]string{"name", "age", "city"})) {
			t.Errorf("header = %v, want [name age city]", header)
		}
		want := []model.Record{
			{"alice", "30", ""},
			{"bob", "25", "oslo"},
		}
		if !reflect.DeepEqual(records, want) {
			t.Errorf("records = %v, want %v", records, want)
		}
	})

	t.Run("single object is one row", func(t *testing.T) {
		t.Parallel()

		source := NewSource("one.json", []byte(`{"a": 1, "b": null}`), model.BackendDocument)
		header, records, err := source.parse(context.Background())
		if err != nil {
			t.Fatalf("parse error = %v", err)
		}
		if !header.Equal(model.NewHeader([]string{"a", "b"})) || len(records) != 1 {
			t.Fatalf("header = %v, records = %v", header, records)
		}
		if !records[0].Equal(model.NewRecord([]string{"1", ""})) {
			t.Errorf("record = %v, null should read as empty", records[0])
		}
	})

	t.Run("scalar document is rejected", func(t *testing.T) {
		t.Parallel()

		source := NewSource("bad.json", []byte(`42`), model.BackendDocument)
		_, _, err := source.parse(context.Background())
		if !errors.Is(err, ErrFormat) {
			t.Errorf("error = %v, want ErrFormat", err)
		}
	})

	t.Run("truncated input is rejected", func(t *testing.T) {
		t.Parallel()

		source := NewSource("bad.json", []byte(`[{"a": 1}`), model.BackendDocument)
		_, _, err := source.parse(context.Background())
		if !errors.Is(err, ErrFormat) {
			t.Errorf("error = %v, want ErrFormat", err)
		}
	})
}

func TestSourceParseXLSX(t *testing.T) {
	t.Parallel()

	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	rows := [][]any{
		{"id", "make", "price"},
		{1, "toyota", 20000.5},
		{2, "honda", nil},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := workbook.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := workbook.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	source := NewSource("cars.xlsx", buf.Bytes(), model.BackendRelational)
	header, records, err := source.parse(context.Background())
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	if !header.Equal(model.NewHeader([]string{"id", "make", "price"})) {
		t.Errorf("header = %v", header)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// trailing empty cells are padded back to the header width
	if len(records[1]) != 3 || records[1][2] != "" {
		t.Errorf("short row = %v, want padded to 3 fields", records[1])
	}
}

func TestSourceParseUnsupported(t *testing.T) {
	t.Parallel()

	source := NewSource("cars.txt", []byte("whatever"), model.BackendRelational)
	_, _, err := source.parse(context.Background())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}
