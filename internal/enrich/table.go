package enrich

// Explode flattens candidate results into one row per email. A result with no
// emails still yields a single row with an empty EMAIL cell.
func Explode(results []CandidateResult) []OutputRow {
	rows := make([]OutputRow, 0, len(results))
	for _, res := range results {
		base := OutputRow{
			FirstName: res.Record.FirstName,
			LastName:  res.Record.LastName,
			Street:    res.Record.Street,
			City:      res.City.City,
			District:  res.City.District,
			ZIP:       res.Record.ZIP,
			Status:    res.Status,
		}
		if len(res.Emails) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, email := range res.Emails {
			row := base
			row.Email = email
			rows = append(rows, row)
		}
	}
	return rows
}

// BlankDuplicates returns a copy of rows where every row whose identity tuple
// (first name, last name, street, city, district, zip) already appeared on an
// earlier row has those six fields cleared. EMAIL and STATUS are untouched.
func BlankDuplicates(rows []OutputRow) []OutputRow {
	out := make([]OutputRow, len(rows))
	seen := make(map[identity]struct{}, len(rows))
	for i, row := range rows {
		key := row.identity()
		out[i] = row
		if _, dup := seen[key]; dup {
			out[i] = OutputRow{Email: row.Email, Status: row.Status}
			continue
		}
		seen[key] = struct{}{}
	}
	return out
}
