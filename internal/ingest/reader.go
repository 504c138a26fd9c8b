// Package ingest reads tender notices from parquet exports for bulk loading.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/scorpius/internal/domain/procurement"
)

// Column names recognised in notice files. Only content is required.
const (
	ColID              = "id"
	ColContent         = "content"
	ColOrganisme       = "organisme"
	ColSecteur         = "secteur"
	ColTypeAO          = "type_ao"
	ColMontant         = "montant"
	ColDomaine         = "domaine_technique"
	ColDatePublication = "date_publication"
)

// MetaDatePublication is the metadata key of the publication date.
const MetaDatePublication = "date_publication"

const readBuffer = 1000

// Notice is one row ready for AddDocuments.
type Notice struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Stats summarises a read.
type Stats struct {
	Rows    int
	Skipped int // rows without content
}

// BatchFunc receives consecutive notices. Returning an error stops the read.
type BatchFunc func(batch []Notice) error

// Files resolves path to the parquet files it names: the file itself, or
// every *.parquet inside a directory in lexical order.
func Files(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", path)
	}
	sort.Strings(files)
	return files, nil
}

type columns struct {
	id, content, organisme, secteur, typeAO, montant, domaine, date int
}

func resolveColumns(pf *parquet.File) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case ColID:
			cols.id = i
		case ColContent:
			cols.content = i
		case ColOrganisme:
			cols.organisme = i
		case ColSecteur:
			cols.secteur = i
		case ColTypeAO:
			cols.typeAO = i
		case ColMontant:
			cols.montant = i
		case ColDomaine:
			cols.domaine = i
		case ColDatePublication:
			cols.date = i
		}
	}
	if cols.content < 0 {
		return cols, fmt.Errorf("%s column not found in parquet schema", ColContent)
	}
	return cols, nil
}

// ReadFile streams the notices of one file to fn in batches of batchSize.
// Rows lacking an id get "{file}_{row}".
func ReadFile(path string, batchSize int, fn BatchFunc) (Stats, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Stats{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return Stats{}, fmt.Errorf("stat: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return Stats{}, fmt.Errorf("open parquet: %w", err)
	}
	cols, err := resolveColumns(pf)
	if err != nil {
		return Stats{}, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var (
		stats Stats
		batch = make([]Notice, 0, batchSize)
		buf   = make([]parquet.Row, readBuffer)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]Notice, 0, batchSize)
		return nil
	}

	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				seq := stats.Rows + stats.Skipped
				notice, ok := rowToNotice(buf[i], cols)
				if !ok {
					stats.Skipped++
					continue
				}
				if notice.ID == "" {
					notice.ID = fmt.Sprintf("%s_%d", base, seq)
				}
				stats.Rows++
				batch = append(batch, notice)
				if len(batch) == batchSize {
					if err := flush(); err != nil {
						return stats, err
					}
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return stats, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return stats, flush()
}

// rowToNotice maps a generic row by leaf column index. List columns
// (domaine_technique) contribute one value per element.
func rowToNotice(row parquet.Row, cols columns) (Notice, bool) {
	var (
		n       = Notice{Metadata: map[string]any{}}
		domains []string
	)
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case cols.id:
			n.ID = strings.TrimSpace(v.String())
		case cols.content:
			n.Content = v.String()
		case cols.organisme:
			setString(n.Metadata, procurement.MetaOrganisme, v.String())
		case cols.secteur:
			setString(n.Metadata, procurement.MetaSector, v.String())
		case cols.typeAO:
			setString(n.Metadata, procurement.MetaProcedure, v.String())
		case cols.date:
			setString(n.Metadata, MetaDatePublication, v.String())
		case cols.domaine:
			domains = append(domains, splitList(v.String())...)
		case cols.montant:
			if amount, ok := numeric(v); ok {
				n.Metadata[procurement.MetaAmount] = amount
				n.Metadata[procurement.MetaAmountRange] = procurement.AmountRange(int64(amount))
			}
		}
	}
	if strings.TrimSpace(n.Content) == "" {
		return Notice{}, false
	}
	if len(domains) > 0 {
		n.Metadata[procurement.MetaDomain] = domains
	}
	return n, true
}

// splitList accepts scalar cells holding several values separated by
// ',', ';' or '|'.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(meta map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		meta[key] = value
	}
}

func numeric(v parquet.Value) (float64, bool) {
	switch v.Kind() {
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Double:
		return v.Double(), true
	case parquet.ByteArray:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		return f, err == nil
	}
	return 0, false
}
