// Package geo ranks catalog entries by great-circle distance from the
// client's reported position (spec §4.3).
package geo

import (
	"math"
	"sort"

	"github.com/abhayap/speedtest-go/internal/model"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// (lat, lon) points in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Rank sorts servers by ascending distance from client, stable under ties.
// LatencyMs on the returned RankedServer is left at zero; the latency
// prober fills it in during probing.
func Rank(client model.ClientInfo, servers []model.ServerRecord) []model.RankedServer {
	ranked := make([]model.RankedServer, len(servers))
	for i, s := range servers {
		ranked[i] = model.RankedServer{
			ServerRecord: s,
			DistanceKM:   Haversine(client.Lat, client.Lon, s.Lat, s.Lon),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKM < ranked[j].DistanceKM
	})
	return ranked
}
