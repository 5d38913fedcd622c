package ingest

import (
	"fmt"
	"strings"

	"drugsecure/pkg/domain"
)

// PasteColumns is the minimum number of values a pasted row must carry:
// brand followed by every numeric feature in domain.AllFeatures order.
var PasteColumns = 1 + len(domain.AllFeatures)

// ParsePasted splits a single pasted line on tabs and commas, trims each
// part and drops empty parts. Values beyond PasteColumns are ignored.
func ParsePasted(line string) (Form, error) {
	parts := strings.FieldsFunc(line, func(r rune) bool { return r == '\t' || r == ',' })
	values := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	if len(values) < PasteColumns {
		return Form{}, domain.ValidationError{Fields: []domain.FieldError{{
			Field:   "paste",
			Message: fmt.Sprintf("expected at least %d values, got %d", PasteColumns, len(values)),
		}}}
	}
	f := Form{Brand: values[0], Values: make(map[domain.Feature]FieldValue, len(domain.AllFeatures))}
	for i, feat := range domain.AllFeatures {
		f.Values[feat] = FieldValue(values[i+1])
	}
	return f, nil
}

// ParsePastedBlock parses one form per non-blank line. Errors are reported
// per line (1-based) and do not stop parsing.
func ParsePastedBlock(text string) ([]Form, map[int]error) {
	var forms []Form
	errs := map[int]error{}
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f, err := ParsePasted(line)
		if err != nil {
			errs[i+1] = err
			continue
		}
		forms = append(forms, f)
	}
	return forms, errs
}
