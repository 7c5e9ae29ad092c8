// Package enrich defines the record and row types shared across the enrichment pipeline.
package enrich

import (
	"context"
	"strings"
)

// Status marks whether an output row came from a successful lookup.
type Status string

// Row status values persisted in the STATUS column.
const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Columns is the fixed header of the persisted output table.
var Columns = []string{"FIRST_NAME", "LAST_NAME", "STREET", "CITY", "DIST", "ZIP", "EMAIL", "STATUS"}

// InputColumns are the header names read from the input sheet.
var InputColumns = []string{"FIRST_NAME", "LAST_NAME", "STREET", "ZIP"}

// InputRecord identifies a person to enrich.
type InputRecord struct {
	FirstName string
	LastName  string
	Street    string
	ZIP       string
}

// FullName joins first and last name with a single space.
func (r InputRecord) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// CityCandidate is one city/district pair resolved from a ZIP code.
type CityCandidate struct {
	City     string
	District string
}

// SplitCity separates a raw "City DIST" string on its last whitespace token.
func SplitCity(raw string) CityCandidate {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return CityCandidate{}
	}
	return CityCandidate{
		City:     strings.Join(fields[:len(fields)-1], " "),
		District: fields[len(fields)-1],
	}
}

// SearchAddress is the address a people-search query is built from and verified against.
type SearchAddress struct {
	Street   string
	City     string
	District string
	ZIP      string
}

// Query is one people-search lookup.
type Query struct {
	FirstName string
	LastName  string
	Address   SearchAddress
}

// NewQuery composes a query from an input record and one city candidate.
func NewQuery(rec InputRecord, city CityCandidate) Query {
	return Query{
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Address: SearchAddress{
			Street:   rec.Street,
			City:     city.City,
			District: city.District,
			ZIP:      rec.ZIP,
		},
	}
}

// CandidateResult is the outcome of searching one city candidate, before explosion.
type CandidateResult struct {
	Record InputRecord
	City   CityCandidate
	Emails []string
	Status Status
}

// OutputRow is one row of the persisted table.
type OutputRow struct {
	FirstName string
	LastName  string
	Street    string
	City      string
	District  string
	ZIP       string
	Email     string
	Status    Status
}

// Values returns the row in Columns order.
func (r OutputRow) Values() []string {
	return []string{r.FirstName, r.LastName, r.Street, r.City, r.District, r.ZIP, r.Email, string(r.Status)}
}

// RowFromValues builds a row from cells in Columns order; missing cells are empty.
func RowFromValues(values []string) OutputRow {
	get := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return OutputRow{
		FirstName: get(0),
		LastName:  get(1),
		Street:    get(2),
		City:      get(3),
		District:  get(4),
		ZIP:       get(5),
		Email:     get(6),
		Status:    Status(get(7)),
	}
}

type identity struct {
	firstName, lastName, street, city, district, zip string
}

func (r OutputRow) identity() identity {
	return identity{r.FirstName, r.LastName, r.Street, r.City, r.District, r.ZIP}
}

// Store persists output rows. Appends never rewrite earlier rows.
type Store interface {
	Append(ctx context.Context, rows []OutputRow) error
	Load(ctx context.Context) ([]OutputRow, error)
}
