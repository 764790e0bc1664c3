package jsonapi

// ContentType is the JSON:API media type.
const ContentType = "application/vnd.api+json"

// Resource is implemented by domain objects that can be rendered as
// resource objects.
type Resource interface {
	ResourceType() string
	ResourceID() string
	// ResourceAttributes returns every attribute keyed by field name.
	ResourceAttributes() map[string]any
}

// Identifier is a resource identifier object.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship is a to-one relationship.
type Relationship struct {
	Data *Identifier `json:"data"`
}

// ResourceObject is a resource object with a sparse attribute set.
type ResourceObject struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Document is a top-level JSON:API document. Data holds a ResourceObject or
// a slice of them.
type Document struct {
	Data     any              `json:"data"`
	Included []ResourceObject `json:"included,omitempty"`
	Meta     map[string]any   `json:"meta,omitempty"`
}

// NewResourceObject renders r with only the given fields. Fields that r
// does not provide are skipped.
func NewResourceObject(r Resource, fields []string) ResourceObject {
	all := r.ResourceAttributes()
	attrs := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			attrs[f] = v
		}
	}
	return ResourceObject{Type: r.ResourceType(), ID: r.ResourceID(), Attributes: attrs}
}

// Relate adds a to-one relationship to o.
func (o *ResourceObject) Relate(name string, target Identifier) {
	if o.Relationships == nil {
		o.Relationships = make(map[string]Relationship)
	}
	o.Relationships[name] = Relationship{Data: &target}
}

// Identifier returns the identifier of o.
func (o ResourceObject) Identifier() Identifier {
	return Identifier{Type: o.Type, ID: o.ID}
}

// Render builds a resource object of r using the fieldset q requests for
// r's type.
func Render(q *Query, r Resource) ResourceObject {
	return NewResourceObject(r, q.Fieldset(r.ResourceType()))
}

// Include appends o to the included section unless an object with the same
// identifier is already present.
func (d *Document) Include(o ResourceObject) {
	for _, existing := range d.Included {
		if existing.Type == o.Type && existing.ID == o.ID {
			return
		}
	}
	d.Included = append(d.Included, o)
}
