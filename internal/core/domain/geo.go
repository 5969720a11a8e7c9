package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is a closed ring of vertices. The last vertex may repeat the first.
type Polygon struct {
	Vertices []GeoPoint `json:"vertices"`
}

// DistinctVertices counts unique vertices, so a closing repeat of the first
// vertex or a duplicated corner does not count twice.
func (p Polygon) DistinctVertices() int {
	seen := make(map[GeoPoint]struct{}, len(p.Vertices))
	for _, v := range p.Vertices {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether p lies inside or on the box.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}
