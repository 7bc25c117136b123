package model

// Columns the document scanner adds to a table.
const (
	ColGeneratedLink  = "generated_link"
	ColPDFContent     = "pdf_content"
	ColPDFStatus      = "pdf_status"
	ColPagesExtracted = "pages_extracted"
	ColLots           = "lots"
	ColMandatoryVisit = "visite_obligatoire"
)

// pdf_status values. Download and extraction failures are stored as
// "Error: <cause>" built from the underlying error.
const (
	ScanSuccess     = "Success"
	ScanSkippedNoID = "Skipped - No ID"
	ScanBadDate     = "Error - Date parsing failed"
)
