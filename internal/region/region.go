// Package region maps a caller's phone number to a climate region, which
// weights emergency-type priority (no_heat in the north, no_ac in the south).
package region

import (
	"github.com/hvac_triage/backend/internal/models"
)

// Northern/cold-climate area codes. Anything not listed here resolves to
// south, which biases toward cooling emergencies.
var northernAreaCodes = map[int]struct{}{}

// Southern/hot-climate area codes. Resolution only consults the northern
// set (everything else defaults south); this set backs Description.
var southernAreaCodes = map[int]struct{}{}

func init() {
	north := []int{
		// New York
		212, 315, 347, 516, 518, 585, 607, 631, 646, 680, 716, 718, 838, 845, 914, 917, 929, 934,
		// Massachusetts
		339, 351, 413, 508, 617, 774, 781, 857, 978,
		// Pennsylvania
		215, 223, 267, 272, 412, 445, 484, 570, 582, 610, 717, 724, 814, 878,
		// Illinois
		217, 224, 309, 312, 331, 630, 708, 773, 779, 815, 847, 872,
		// Ohio
		216, 220, 234, 283, 330, 380, 419, 440, 513, 567, 614, 740, 937,
		// Michigan
		231, 248, 269, 313, 517, 586, 616, 734, 810, 906, 947, 989,
		// Wisconsin
		262, 414, 534, 608, 715, 920,
		// Minnesota
		218, 320, 507, 612, 651, 763, 952,
		// Dakotas, Montana, Wyoming, Idaho
		701, 605, 406, 307, 208, 986,
		// New England
		802, 603, 207, 203, 475, 860, 959, 401,
		// Iowa, Nebraska, Kansas
		319, 515, 563, 641, 712, 308, 402, 531, 316, 620, 785, 913,
		// Colorado, Utah, northern Nevada
		303, 719, 720, 970, 385, 435, 801, 775,
		// Pacific Northwest, Alaska
		206, 253, 360, 425, 509, 564, 458, 503, 541, 971, 907,
	}
	south := []int{
		// Florida
		239, 305, 321, 352, 386, 407, 561, 727, 754, 772, 786, 813, 850, 863, 904, 941, 954,
		// Texas
		210, 214, 254, 281, 325, 361, 409, 430, 432, 469, 512, 682, 713, 737, 806, 817, 830, 832, 903, 915, 936, 940, 956, 972, 979,
		// Arizona
		480, 520, 602, 623, 928,
		// Louisiana
		225, 318, 337, 504, 985,
		// Alabama, Mississippi
		205, 251, 256, 334, 938, 228, 601, 662, 769,
		// Georgia
		229, 404, 470, 478, 678, 706, 762, 770, 912,
		// South Carolina, Arkansas
		803, 843, 854, 864, 479, 501, 870,
		// New Mexico, Oklahoma, southern Nevada
		505, 575, 405, 539, 580, 918, 702, 725,
	}
	for _, c := range north {
		northernAreaCodes[c] = struct{}{}
	}
	for _, c := range south {
		southernAreaCodes[c] = struct{}{}
	}
}

// AreaCode extracts the US area code from a phone number in any common
// format. Returns 0 when no area code is extractable.
func AreaCode(phone string) int {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	switch {
	case len(digits) == 10:
		return atoi3(digits[0:3])
	case len(digits) == 11 && digits[0] == '1':
		return atoi3(digits[1:4])
	}
	return 0
}

// Resolve never fails: an unusable phone number is not an error, only a
// degraded default (south).
func Resolve(phone string) string {
	code := AreaCode(phone)
	if code == 0 {
		return models.RegionSouth
	}
	if _, ok := northernAreaCodes[code]; ok {
		return models.RegionNorth
	}
	return models.RegionSouth
}

// PriorityIssues lists the emergency categories considered especially
// urgent for a region.
func PriorityIssues(region string) []string {
	if region == models.RegionNorth {
		return []string{"no_heat", "gas", "safety"}
	}
	return []string{"no_ac", "gas", "safety"}
}

// Description returns an owner-facing summary of the climate zone.
func Description(phone string) string {
	code := AreaCode(phone)
	if _, ok := southernAreaCodes[code]; ok {
		return "Hot climate region - AC emergencies prioritized during heat waves"
	}
	if _, ok := northernAreaCodes[code]; ok {
		return "Cold climate region - Furnace emergencies prioritized during cold snaps"
	}
	return "Hot climate region - AC emergencies prioritized during heat waves"
}

func atoi3(b []byte) int {
	return int(b[0]-'0')*100 + int(b[1]-'0')*10 + int(b[2]-'0')
}
