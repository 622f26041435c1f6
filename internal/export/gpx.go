package export

import (
	"encoding/xml"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Trk     gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name string     `xml:"name"`
	Seg  gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele,omitempty"`
	Time string   `xml:"time"`
}

// GPX renders the session route as a GPX 1.1 track, one segment, one
// point per accepted fix.
func GPX(s tracking.Session) ([]byte, error) {
	name := s.Notes
	if name == "" {
		name = "Ruck " + s.StartedAt.Format("2006-01-02")
	}

	doc := gpxFile{
		Version: "1.1",
		Creator: "ruckd",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Trk:     gpxTrack{Name: name},
	}
	for _, p := range s.Route {
		doc.Trk.Seg.Points = append(doc.Trk.Seg.Points, gpxPoint{
			Lat:  p.Lat,
			Lon:  p.Lng,
			Ele:  p.AltitudeM,
			Time: p.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
