package models

// Selection is one title picked by the caller for packaging.
type Selection struct {
	Title      string
	NaturalKey string
}

// MuxOutput is the remuxed container produced for one title.
type MuxOutput struct {
	FileName string
	Data     []byte
}

// Stage names the pipeline step a title failed in.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageMux     Stage = "mux"
)

// Failure records why a title was left out of the archive.
type Failure struct {
	Index      int // position of the title in the request's selections
	Title      string
	NaturalKey string
	Stage      Stage
	Err        error
}

// PackageResult is the outcome of one packaging request.
type PackageResult struct {
	Archive  []byte   // zip bytes
	Entries  []string // archive entry names in archive order
	Failures []Failure
}
