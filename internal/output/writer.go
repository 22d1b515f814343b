// Package output serializes match records as a JSON array, one record per line.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ak7sky/popmatch/internal/core/model"
)

func WriteRecords(w io.Writer, records []*model.Record) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	for i, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode record of %s: %w", record.RelayIP, err)
		}
		if i < len(records)-1 {
			line = append(line, ',')
		}
		line = append(line, '\n')
		if _, err = w.Write(line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}
