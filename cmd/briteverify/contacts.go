package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// contactRow is the file form of a contact; unlike ContactRecord it carries
// the caller's external id.
type contactRow struct {
	Email      string                     `json:"email" yaml:"email"`
	Phone      string                     `json:"phone" yaml:"phone"`
	ExternalID string                     `json:"external_id" yaml:"external_id"`
	Address    *briteverify.StreetAddress `json:"address" yaml:"address"`
}

func (r contactRow) record() briteverify.ContactRecord {
	return briteverify.ContactRecord{
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
		Address:    r.Address,
		ExternalID: strings.TrimSpace(r.ExternalID),
	}
}

// contactsFromArgs reads the --file contacts followed by positional ones.
func contactsFromArgs(e *env) ([]briteverify.ContactRecord, error) {
	var records []briteverify.ContactRecord
	if path, _ := e.flags.GetString("file"); path != "" {
		fromFile, err := loadContacts(path)
		if err != nil {
			return nil, err
		}
		records = append(records, fromFile...)
	}
	for _, arg := range e.args {
		rec, err := briteverify.ParseContact(arg)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("no contacts given (pass them as arguments or with --file)")
	}
	return records, nil
}

func loadContacts(path string) ([]briteverify.ContactRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	defer f.Close()

	var records []briteverify.ContactRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSVContacts(f)
	case ".json":
		records, err = readJSONContacts(f)
	case ".yaml", ".yml":
		records, err = readYAMLContacts(f)
	default:
		records, err = readLineContacts(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read contacts %s: %w", path, err)
	}
	return records, nil
}

// csvColumns maps accepted header names to contactRow fields.
var csvColumns = map[string]string{
	"email":         "email",
	"email_address": "email",
	"phone":         "phone",
	"phone_number":  "phone",
	"external_id":   "external_id",
	"id":            "external_id",
	"address1":      "address1",
	"address2":      "address2",
	"city":          "city",
	"state":         "state",
	"zip":           "zip",
}

func readCSVContacts(r io.Reader) ([]briteverify.ContactRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	cols := make([]string, len(header))
	known := 0
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[i] = csvColumns[name]
		if cols[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("csv header %q has no contact columns", strings.Join(header, ","))
	}

	var records []briteverify.ContactRecord
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		var (
			c    contactRow
			addr briteverify.StreetAddress
		)
		for i, v := range row {
			if i >= len(cols) {
				break
			}
			v = strings.TrimSpace(v)
			switch cols[i] {
			case "email":
				c.Email = v
			case "phone":
				c.Phone = v
			case "external_id":
				c.ExternalID = v
			case "address1":
				addr.Address1 = v
			case "address2":
				addr.Address2 = v
			case "city":
				addr.City = v
			case "state":
				addr.State = v
			case "zip":
				addr.Zip = v
			}
		}
		if !addr.IsBlank() {
			c.Address = &addr
		}
		rec := c.record()
		if rec.IsEmpty() {
			continue
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSONContacts(r io.Reader) ([]briteverify.ContactRecord, error) {
	var rows []contactRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}
	return rowsToRecords(rows)
}

func readYAMLContacts(r io.Reader) ([]briteverify.ContactRecord, error) {
	var rows []contactRow
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return rowsToRecords(rows)
}

func rowsToRecords(rows []contactRow) ([]briteverify.ContactRecord, error) {
	records := make([]briteverify.ContactRecord, 0, len(rows))
	for i, row := range rows {
		rec := row.record()
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("contact %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readLineContacts parses one contact per line; blank lines and lines
// starting with # are skipped.
func readLineContacts(r io.Reader) ([]briteverify.ContactRecord, error) {
	var records []briteverify.ContactRecord
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := briteverify.ParseContact(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}
