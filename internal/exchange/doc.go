// Package exchange converts assessment templates to and from a flat,
// spreadsheet-style table.
//
// # Import
//
// An uploaded CSV or XLSX file is read into a [Table]: the first row is the
// header, every following row is data. The pipeline is:
//
//  1. [DefaultMapping] maps header text to semantic [Role]s using a
//     case-insensitive [Lookup]. The user may override any mapping.
//  2. [ValidateColumn] checks one mapped role against every data row (the
//     column pass). It runs again for a role whenever its mapping changes.
//  3. [GroupRows] splits the data rows into one [RowGroup] per template,
//     keyed by the template name column.
//  4. [Builder.Build] turns one group into an [assessment.Template].
//  5. [ValidateTemplate] checks the built tree (the document pass).
//
// Option columns are not part of the role mapping. They are found by a
// literal scan of the header for repeated "Value" / "Score" labels, see
// [ScanOptionSlots]. The two detection strategies are kept separate on
// purpose: a file exported by [ExportCSV] always uses the literal labels,
// while the role columns may carry arbitrary header text.
//
// # Export
//
// [ExportCSV] flattens a template into one row per question with a fixed
// nine column prefix followed by Value/Score pairs sized to the question
// with the most options. [ExportXLSX] writes the same grid to a workbook.
//
// # Error Handling
//
// Column pass failures are plain strings that embed 1-based row and column
// coordinates. Document pass failures are [*DocumentError] values. Any error
// can be turned into a user-facing [UserMessage] with [MapError].
package exchange
