package graph

import "github.com/jacentio/murmur/model"

// Edge names a reference sequence embedded in an owning entity.
type Edge struct {
	// Name identifies the edge (e.g., "followers").
	Name string

	// OwnerKind is the entity embedding the sequence (e.g., account).
	OwnerKind model.Kind

	// Field is the sequence attribute on the owner (e.g., "followers").
	Field string

	// TargetKind is the kind of the referenced entities.
	TargetKind model.Kind

	// Inverse is the attribute on a target that lists the owners whose
	// sequences may hold the target's id. Empty when targets do not track
	// their owners.
	Inverse string
}

// Built-in edges.
var (
	Followers    = Edge{Name: "followers", OwnerKind: model.KindAccount, Field: "followers", TargetKind: model.KindAccount, Inverse: "following"}
	Following    = Edge{Name: "following", OwnerKind: model.KindAccount, Field: "following", TargetKind: model.KindAccount, Inverse: "followers"}
	PostLikes    = Edge{Name: "likes", OwnerKind: model.KindPost, Field: "likes", TargetKind: model.KindAccount}
	PostComments = Edge{Name: "comments", OwnerKind: model.KindPost, Field: "comments", TargetKind: model.KindComment, Inverse: "post"}
	CommentLikes = Edge{Name: "commentLikes", OwnerKind: model.KindComment, Field: "likes", TargetKind: model.KindAccount}
)

// Registry holds all known edges.
type Registry struct {
	edges    []Edge
	byName   map[string]Edge
	byTarget map[model.Kind][]Edge
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		edges:    []Edge{},
		byName:   make(map[string]Edge),
		byTarget: make(map[model.Kind][]Edge),
	}
}

// DefaultRegistry returns a registry holding the built-in edges.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range []Edge{Followers, Following, PostLikes, PostComments, CommentLikes} {
		r.Register(e)
	}
	return r
}

// Register adds an edge to the registry. A later edge with the same name
// replaces the earlier one for Lookup.
func (r *Registry) Register(e Edge) {
	r.edges = append(r.edges, e)
	r.byName[e.Name] = e
	r.byTarget[e.TargetKind] = append(r.byTarget[e.TargetKind], e)
}

// Lookup returns the edge registered under name.
func (r *Registry) Lookup(name string) (Edge, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// ReferencesTo returns the edges whose sequences hold ids of kind.
func (r *Registry) ReferencesTo(kind model.Kind) []Edge {
	return r.byTarget[kind]
}

// All returns all registered edges.
func (r *Registry) All() []Edge {
	return r.edges
}
