package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodePlantTXT creates TXT records for plant discovery.
func EncodePlantTXT(info *PlantInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyPlantName] = info.PlantName

	// Optional fields
	if info.MachineCount > 0 {
		txt[TXTKeyMachineCount] = strconv.FormatUint(uint64(info.MachineCount), 10)
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}

	return txt
}

// DecodePlantTXT parses TXT records from plant discovery.
func DecodePlantTXT(txt TXTRecordMap) (*PlantInfo, error) {
	info := &PlantInfo{}

	// Parse plant name (required)
	var ok bool
	info.PlantName, ok = txt[TXTKeyPlantName]
	if !ok || info.PlantName == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPlantName)
	}

	// Parse machine count (optional)
	if mcStr, ok := txt[TXTKeyMachineCount]; ok {
		mc, err := strconv.ParseUint(mcStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid machine count", ErrInvalidTXTRecord)
		}
		info.MachineCount = uint8(mc)
	}

	// Optional fields
	info.Version = txt[TXTKeyVersion]

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
