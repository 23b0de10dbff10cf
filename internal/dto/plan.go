package dto

// NamedNodeRequest creates or renames a hierarchy node.
type NamedNodeRequest struct {
	Name string `json:"name" validate:"required"`
}

// AufgabeRequest creates or updates a task leaf.
type AufgabeRequest struct {
	Text      string `json:"text" validate:"required"`
	Completed bool   `json:"completed"`
}

// ImportThema is a candidate topic inside an import payload.
type ImportThema struct {
	Name     string   `json:"name"`
	Aufgaben []string `json:"aufgaben"`
}

// ImportKapitel is a candidate chapter inside an import payload.
type ImportKapitel struct {
	Name   string        `json:"name"`
	Themen []ImportThema `json:"themen"`
}

// ImportTree is a donor subtree from a template or an OCR run. Every id is
// regenerated on import so repeated imports yield disjoint nodes.
type ImportTree struct {
	Fach    string          `json:"fach"`
	Kapitel []ImportKapitel `json:"kapitel"`
	Themen  []ImportThema   `json:"themen"`
}

// OCRResult is the wire payload of the external syllabus structuring service.
type OCRResult struct {
	Fach    string          `json:"fach"`
	Kapitel []ImportKapitel `json:"kapitel"`
	Themen  []ImportThema   `json:"themen"`
	Lines   []string        `json:"lines"`
	RawText string          `json:"raw_text"`
}
