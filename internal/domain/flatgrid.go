package domain

import "fmt"

// Grid limits follow from the flat code layout: one wing letter, two floor
// digits and two room digits.
const (
	MaxWings         = 26
	MaxFloorsPerWing = 99
	MaxRoomsPerFloor = 99
)

// GenerateFlatGrid enumerates the flat codes of a society, wing by wing, then
// floor, then room. Codes look like A0101. A zero count yields an empty grid.
func GenerateFlatGrid(wings, floorsPerWing, roomsPerFloor int) ([]string, error) {
	if err := ValidateGrid(wings, floorsPerWing, roomsPerFloor); err != nil {
		return nil, err
	}

	total := wings * floorsPerWing * roomsPerFloor
	if total == 0 {
		return []string{}, nil
	}

	flats := make([]string, 0, total)
	for wing := 0; wing < wings; wing++ {
		wingName := rune('A' + wing)
		for floor := 1; floor <= floorsPerWing; floor++ {
			for room := 1; room <= roomsPerFloor; room++ {
				flats = append(flats, fmt.Sprintf("%c%02d%02d", wingName, floor, room))
			}
		}
	}
	return flats, nil
}

// ValidateGrid checks the grid dimensions without generating anything.
func ValidateGrid(wings, floorsPerWing, roomsPerFloor int) error {
	switch {
	case wings < 0 || floorsPerWing < 0 || roomsPerFloor < 0:
		return Validation("wing, floor and room counts must not be negative")
	case wings > MaxWings:
		return Validation("a society can have at most %d wings", MaxWings)
	case floorsPerWing > MaxFloorsPerWing:
		return Validation("a wing can have at most %d floors", MaxFloorsPerWing)
	case roomsPerFloor > MaxRoomsPerFloor:
		return Validation("a floor can have at most %d rooms", MaxRoomsPerFloor)
	}
	return nil
}
