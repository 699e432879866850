// Package types holds the value types shared across the similarity engine:
// document identity, granularity, and the per-document metadata persisted
// by the index writer.
package types

import "fmt"

// BlobID is the lowercase-hex SHA1 of a document's raw bytes.
type BlobID string

// Granularity selects whether documents are whole files or functions.
type Granularity string

const (
	GranularityFile Granularity = "file"
	GranularityFunc Granularity = "func"
)

// DocKey is the stable primary key used throughout the index:
// "<repo>//<path>@<blob-id>" for file granularity, with a
// ":<name>:<line>" suffix appended for function granularity.
type DocKey string

// NewFileKey builds the document key for whole-file granularity.
func NewFileKey(repo, path string, blob BlobID) DocKey {
	return DocKey(fmt.Sprintf("%s//%s@%s", repo, path, blob))
}

// NewFuncKey builds the document key for function granularity.
func NewFuncKey(repo, path string, blob BlobID, name string, line int) DocKey {
	return DocKey(fmt.Sprintf("%s//%s@%s:%s:%d", repo, path, blob, name, line))
}

// Meta is the per-document metadata row persisted by the index writer
// (spec §3 IndexEntry, §4.5 the "meta" table).
type Meta struct {
	Blob   BlobID
	Repo   string
	Commit string
	Path   string
	// URLTemplate renders a browsable link for this repo, e.g.
	// "https://github.com/{repo}/blob/{commit}/{path}". Empty means unknown.
	URLTemplate string
}

// Key reconstructs the document key this metadata row was written under.
func (m Meta) Key() DocKey {
	return NewFileKey(m.Repo, m.Path, m.Blob)
}

// Feature is a (token, weight) pair as produced by an external feature
// extractor. Weight is the raw term count the extractor observed; equal
// tokens within one document are expected to already be summed.
type Feature struct {
	Token  string
	Weight uint32
}

// Document is one unit fed into the pipeline by a repository walker: the
// identity of a file (or function) plus the feature bag an extractor
// produced for it.
type Document struct {
	Repo     string
	Commit   string
	Path     string
	Blob     BlobID
	Features []Feature
}

// Key returns this document's primary key.
func (d Document) Key() DocKey {
	return NewFileKey(d.Repo, d.Path, d.Blob)
}
