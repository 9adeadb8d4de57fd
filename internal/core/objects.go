package core

// GeometryKind is the geometry class an object type requires.
type GeometryKind int

const (
	// GeometryPoint marks point object kinds (wells, marker posts).
	GeometryPoint GeometryKind = iota
	// GeometryLine marks line object kinds (cables, channel directions).
	GeometryLine
)

func (k GeometryKind) String() string {
	if k == GeometryLine {
		return "LineString"
	}
	return "Point"
}

// ObjectType fixes the import target for one infrastructure object
// kind: its table, geometry class and required attributes.
type ObjectType struct {
	Key      string
	Table    string
	Label    string
	Geometry GeometryKind
	Required []string
}

// objectTypes is the closed catalog of import targets. The format set
// is fixed and small, so this is plain configuration resolved at batch
// start, not a runtime registry.
var objectTypes = []ObjectType{
	{Key: "wells", Table: "wells", Label: "Wells", Geometry: GeometryPoint, Required: []string{"number"}},
	{Key: "marker_posts", Table: "marker_posts", Label: "Marker posts", Geometry: GeometryPoint, Required: []string{"number"}},
	{Key: "channel_directions", Table: "channel_directions", Label: "Channel directions", Geometry: GeometryLine, Required: []string{"number"}},
	{Key: "ground_cables", Table: "ground_cables", Label: "Ground cables", Geometry: GeometryLine, Required: []string{"number"}},
	{Key: "aerial_cables", Table: "aerial_cables", Label: "Aerial cables", Geometry: GeometryLine, Required: []string{"number"}},
	{Key: "duct_cables", Table: "duct_cables", Label: "Duct cables", Geometry: GeometryLine, Required: []string{"number"}},
}

// ObjectTypeByKey resolves an object type by its key.
func ObjectTypeByKey(key string) (ObjectType, bool) {
	for _, ot := range objectTypes {
		if ot.Key == key {
			return ot, true
		}
	}
	return ObjectType{}, false
}

// ObjectTypes returns the full catalog in declaration order. The caller
// must not modify the returned slice.
func ObjectTypes() []ObjectType { return objectTypes }
