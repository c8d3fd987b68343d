package simulation

// Category classifies a device kind for sampling rules.
type Category string

const (
	CategoryLight     Category = "light"
	CategoryFan       Category = "fan"
	CategoryAppliance Category = "appliance"
	CategoryFurniture Category = "furniture"
)

// DeviceKind is a static descriptor for a placeable device. Furniture
// kinds never draw power; AlwaysOn kinds follow the shared duty cycle
// instead of their user-facing switch.
type DeviceKind struct {
	ID       string
	Label    string
	Wattage  float64
	Category Category
	AlwaysOn bool
}

// Catalog maps device kind ids to their descriptors.
type Catalog map[string]DeviceKind

func (c Catalog) Lookup(id string) (DeviceKind, bool) {
	k, ok := c[id]
	return k, ok
}

// DefaultCatalog returns the standard home device set with typical
// residential wattages.
func DefaultCatalog() Catalog {
	kinds := []DeviceKind{
		{ID: "light", Label: "Tube Light", Wattage: 40, Category: CategoryLight},
		{ID: "fan", Label: "Fan", Wattage: 75, Category: CategoryFan},
		{ID: "tv", Label: "TV", Wattage: 75, Category: CategoryAppliance},
		{ID: "oven", Label: "Microwave Oven", Wattage: 1000, Category: CategoryAppliance},
		// Average running wattage; the compressor cycles, so this kind
		// is duty-cycled rather than switched.
		{ID: "fridge", Label: "Fridge", Wattage: 150, Category: CategoryAppliance, AlwaysOn: true},
		{ID: "mirror", Label: "Mirror Light", Wattage: 10, Category: CategoryLight},
		{ID: "chimney", Label: "Kitchen Chimney", Wattage: 200, Category: CategoryFan},
		{ID: "washingmachine", Label: "Washing Machine", Wattage: 500, Category: CategoryAppliance},
		{ID: "table", Label: "Table", Wattage: 0, Category: CategoryFurniture},
		{ID: "carpet", Label: "Carpet", Wattage: 0, Category: CategoryFurniture},
		{ID: "bed", Label: "Bed", Wattage: 0, Category: CategoryFurniture},
		{ID: "sofa", Label: "Sofa", Wattage: 0, Category: CategoryFurniture},
	}

	c := make(Catalog, len(kinds))
	for _, k := range kinds {
		c[k.ID] = k
	}
	return c
}
