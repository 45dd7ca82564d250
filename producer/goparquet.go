package producer

import (
	"context"
	"fmt"
	"os"
	"strings"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"

	"parquet-oracle/dataset"
)

// GoParquet writes row maps through fraugster/parquet-go. Only the codecs
// the library registers out of the box are available.
type GoParquet struct{}

func NewGoParquet() *GoParquet { return &GoParquet{} }

func (g *GoParquet) Name() string { return "goparquet" }

func (g *GoParquet) Version() string { return "github.com/fraugster/parquet-go v0.12.0" }

var goparquetCodecs = map[string]parquet.CompressionCodec{
	"uncompressed": parquet.CompressionCodec_UNCOMPRESSED,
	"snappy":       parquet.CompressionCodec_SNAPPY,
	"gzip":         parquet.CompressionCodec_GZIP,
}

// schemaText renders the table as a parquet message definition.
func schemaText(t *dataset.Table) (string, error) {
	var sb strings.Builder
	sb.WriteString("message oracle {\n")
	for _, c := range t.Columns {
		rep := "required"
		if c.Nullable {
			rep = "optional"
		}

		var decl string
		switch c.Type {
		case dataset.Boolean:
			decl = "boolean " + c.Name
		case dataset.Int32:
			decl = "int32 " + c.Name
		case dataset.Int64:
			decl = "int64 " + c.Name
		case dataset.Float32:
			decl = "float " + c.Name
		case dataset.Float64:
			decl = "double " + c.Name
		case dataset.String:
			decl = "binary " + c.Name + " (STRING)"
		case dataset.Binary:
			decl = "binary " + c.Name
		case dataset.FixedLenByteArray:
			decl = fmt.Sprintf("fixed_len_byte_array(%d) %s", c.Width, c.Name)
		case dataset.Date:
			decl = "int32 " + c.Name + " (DATE)"
		case dataset.Decimal:
			decl = fmt.Sprintf("int64 %s (DECIMAL(%d, %d))", c.Name, c.Precision, c.Scale)
		default:
			return "", fmt.Errorf("unsupported type: %s", c.Type)
		}
		fmt.Fprintf(&sb, "  %s %s;\n", rep, decl)
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

func (g *GoParquet) Write(ctx context.Context, path string, t *dataset.Table, opts Options) error {
	codec, ok := goparquetCodecs[opts.Codec]
	if !ok {
		return unsupported(g.Name(), "codec", opts.Codec)
	}
	if opts.Encoding != "" && opts.Encoding != "plain" {
		return unsupported(g.Name(), "encoding", opts.Encoding)
	}

	text, err := schemaText(t)
	if err != nil {
		return err
	}
	sd, err := parquetschema.ParseSchemaDefinition(text)
	if err != nil {
		return fmt.Errorf("parsing schema definition: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	defer file.Close()

	fw := goparquet.NewFileWriter(file,
		goparquet.WithSchemaDefinition(sd),
		goparquet.WithCompressionCodec(codec),
		goparquet.WithCreator("parquet-oracle"),
	)

	for r := 0; r < t.NumRows(); r++ {
		if r%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := make(map[string]interface{}, len(t.Columns))
		for _, c := range t.Columns {
			switch v := c.Values[r].(type) {
			case nil:
				// absent keys are nulls
			case string:
				row[c.Name] = []byte(v)
			default:
				row[c.Name] = v
			}
		}
		if err := fw.AddData(row); err != nil {
			return fmt.Errorf("adding row %d: %w", r, err)
		}
		if opts.RowGroupSize > 0 && int64(r+1)%opts.RowGroupSize == 0 && r+1 < t.NumRows() {
			if err := fw.FlushRowGroup(); err != nil {
				return fmt.Errorf("flushing row group: %w", err)
			}
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return file.Close()
}
