// Package dates resolves natural-language date and time expressions
// ("tomorrow afternoon", "next Friday at 3pm", "29th June") into zoned
// instants and ranges.
//
// Every value produced here carries an explicit zone. Arithmetic and
// comparisons happen on the UTC instant; the zone is only used when the
// value is shown to a user.
package dates
