package source

// Preview summarizes a source file before import: its columns, a small
// sample of decoded records and the total data-row count.
type Preview struct {
	Columns   []string
	Sample    []map[string]string
	TotalRows int
	Warnings  []string
}

// PreviewRows is how many sample records a preview carries.
const PreviewRows = 10

// BuildPreview opens path as the declared format and drains it,
// keeping the first PreviewRows records in display form. Records that
// fail to decode still count toward the total.
func BuildPreview(path string, format Format, opts Options) (*Preview, error) {
	src, warnings, err := Open(path, format, opts)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	p := &Preview{Columns: src.Columns(), Warnings: warnings}

	for src.Next() {
		p.TotalRows++
		rec, err := src.Record()
		if err != nil || len(p.Sample) >= PreviewRows {
			continue
		}

		row := make(map[string]string, rec.Len())
		for _, name := range rec.Names {
			row[name] = rec.Values[name].String()
		}
		p.Sample = append(p.Sample, row)
	}

	return p, nil
}
