package report

import (
	"encoding/json"
	"io"

	"github.com/matzehuels/depsolve/pkg/resolve"
)

// Document is the machine-readable form of a resolution result.
type Document struct {
	RunID         string     `json:"run_id"`
	Configuration string     `json:"configuration,omitempty"`
	Status        string     `json:"status"`
	Root          string     `json:"root"`
	Modules       []Module   `json:"modules"`
	Edges         []Link     `json:"edges"`
	Conflicts     []Conflict `json:"conflicts,omitempty"`
}

// Module is one selected node.
type Module struct {
	ID           string   `json:"id"`
	Group        string   `json:"group,omitempty"`
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Variant      string   `json:"variant"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Link is one dependency edge.
type Link struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Requested string `json:"requested,omitempty"`
}

// Conflict is one detected conflict and its outcome.
type Conflict struct {
	Kind         string   `json:"kind"`
	Description  string   `json:"description"`
	Participants []string `json:"participants,omitempty"`
	Resolved     bool     `json:"resolved"`
	Winner       string   `json:"winner,omitempty"`
}

// ToDocument converts a result into its JSON document form.
func ToDocument(res *resolve.Result) Document {
	doc := Document{
		RunID:         res.RunID,
		Configuration: res.Configuration,
		Status:        res.Status.String(),
		Root:          res.RootID,
	}

	for _, n := range res.Graph.Nodes() {
		m := Module{
			ID:      n.ID,
			Group:   n.Owner.Module.Group,
			Name:    n.Owner.Module.Name,
			Version: n.Owner.Version,
			Variant: n.Variant,
		}
		for _, c := range n.Capabilities {
			m.Capabilities = append(m.Capabilities, c.String())
		}
		doc.Modules = append(doc.Modules, m)
	}

	for _, e := range res.Graph.Edges() {
		doc.Edges = append(doc.Edges, Link{From: e.From, To: e.To, Requested: e.RequestedVersion})
	}

	for _, c := range res.Conflicts {
		doc.Conflicts = append(doc.Conflicts, Conflict{
			Kind:         c.Kind.String(),
			Description:  c.Description(),
			Participants: c.Participants,
			Resolved:     c.Resolved,
			Winner:       c.Winner,
		})
	}
	return doc
}

// WriteJSON encodes the result as indented JSON.
func WriteJSON(w io.Writer, res *resolve.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToDocument(res))
}
