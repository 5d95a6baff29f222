package main

import (
	"math"
	"math/rand"
)

// ItemClass is the tagged kind of an item: a buff carried in a player's
// inventory, or an entity placed on the map and picked up by tapping.
type ItemClass int

const (
	ItemBuff ItemClass = iota
	ItemMapEntity
)

// BuffTarget says which radius a buff item extends.
type BuffTarget int

const (
	BuffView BuffTarget = iota
	BuffKill
)

// Item is one catalog entry. Kind discriminates which of the variant
// fields apply: BuffTarget for ItemBuff, Lethal for ItemMapEntity.
// Effect is the magnitude in meters.
type Item struct {
	ID          int        `json:"id" msgpack:"id"`
	Name        string     `json:"name" msgpack:"name"`
	ImageURL    string     `json:"imageURL" msgpack:"image_url"`
	Description string     `json:"description" msgpack:"description"`
	Cost        float64    `json:"cost" msgpack:"cost"`
	Kind        ItemClass  `json:"kind" msgpack:"kind"`
	BuffTarget  BuffTarget `json:"buffTarget" msgpack:"buff_target"`
	Lethal      bool       `json:"lethal" msgpack:"lethal"`
	Effect      float64    `json:"effect" msgpack:"effect"`
}

// ItemCatalog is the full list of spawnable items.
var ItemCatalog = []Item{
	{ID: 1, Name: "Binoculars", ImageURL: "/img/binoculars.png", Description: "Extends your view radius", Cost: 5, Kind: ItemBuff, BuffTarget: BuffView, Effect: 10.0},
	{ID: 2, Name: "Sword", ImageURL: "/img/sword.png", Description: "Extends your kill radius", Cost: 10, Kind: ItemBuff, BuffTarget: BuffKill, Effect: 1.0},
	{ID: 3, Name: "Bomb", ImageURL: "/img/bomb.png", Description: "Area blast on the unwary", Cost: 20, Kind: ItemMapEntity, Lethal: true, Effect: 20.0},
	{ID: 4, Name: "Tripwire", ImageURL: "/img/tripwire.png", Description: "Reveals whoever trips it", Cost: 15, Kind: ItemMapEntity, Lethal: false, Effect: 5.0},
}

// ItemCatalogMap provides lookup by item ID.
var ItemCatalogMap map[int]Item

func init() {
	ItemCatalogMap = make(map[int]Item, len(ItemCatalog))
	for _, it := range ItemCatalog {
		ItemCatalogMap[it.ID] = it
	}
}

// spawnItemCount is how many items a session of the given radius gets.
func spawnItemCount(radius float64) int {
	return int(math.Max(radius/100*3, 4))
}

// itemAccuracy is the nominal fix accuracy assigned to spawned item
// locations. The detection formula divides by the candidate's accuracy,
// so a placed item must report a nonzero one.
const itemAccuracy = 5.0

// randomFenceLocation samples a uniform bearing and a radius within the
// session's fence and projects the point from the center.
func randomFenceLocation(center Coordinate, radius float64) Coordinate {
	bearing := rand.Float64() * 2 * math.Pi
	r := rand.Float64() * radius
	at := OffsetCoordinate(center, bearing, r)
	at.Accuracy = itemAccuracy
	return at
}

// spawnItems places a fresh batch of random catalog items inside the
// session's geofence. Caller must hold the session lock.
func (s *GameSession) spawnItems() {
	n := spawnItemCount(s.Radius)
	for i := 0; i < n; i++ {
		pick := ItemCatalog[rand.Intn(len(ItemCatalog))]
		at := randomFenceLocation(s.Center, s.Radius)
		s.items[at] = pick
	}
}

// pickupAt removes and returns the item at the exact location. Caller must
// hold the session lock. ok is false if nothing is placed there.
func (s *GameSession) pickupAt(at Coordinate) (Item, bool) {
	it, ok := s.items[at]
	if !ok {
		return Item{}, false
	}
	delete(s.items, at)
	return it, true
}
