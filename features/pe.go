package features

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// maxExportNames bounds the export table walk on corrupt headers.
const maxExportNames = 1 << 16

var machineNames = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_UNKNOWN: "UNKNOWN",
	pe.IMAGE_FILE_MACHINE_I386:    "I386",
	pe.IMAGE_FILE_MACHINE_AMD64:   "AMD64",
	pe.IMAGE_FILE_MACHINE_ARM:     "ARM",
	pe.IMAGE_FILE_MACHINE_ARMNT:   "ARMNT",
	pe.IMAGE_FILE_MACHINE_ARM64:   "ARM64",
	pe.IMAGE_FILE_MACHINE_IA64:    "IA64",
	pe.IMAGE_FILE_MACHINE_THUMB:   "THUMB",
	pe.IMAGE_FILE_MACHINE_POWERPC: "POWERPC",
	pe.IMAGE_FILE_MACHINE_MIPS16:  "MIPS16",
	pe.IMAGE_FILE_MACHINE_R4000:   "R4000",
	pe.IMAGE_FILE_MACHINE_EBC:     "EBC",
}

var subsystemNames = map[uint16]string{
	pe.IMAGE_SUBSYSTEM_UNKNOWN:                  "UNKNOWN",
	pe.IMAGE_SUBSYSTEM_NATIVE:                   "NATIVE",
	pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:              "WINDOWS_GUI",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:              "WINDOWS_CUI",
	pe.IMAGE_SUBSYSTEM_OS2_CUI:                  "OS2_CUI",
	pe.IMAGE_SUBSYSTEM_POSIX_CUI:                "POSIX_CUI",
	pe.IMAGE_SUBSYSTEM_NATIVE_WINDOWS:           "NATIVE_WINDOWS",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "WINDOWS_CE_GUI",
	pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:          "EFI_APPLICATION",
	pe.IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "EFI_BOOT_SERVICE_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "EFI_RUNTIME_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_ROM:                  "EFI_ROM",
	pe.IMAGE_SUBSYSTEM_XBOX:                     "XBOX",
	pe.IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "WINDOWS_BOOT_APPLICATION",
}

func machineName(m uint16) string {
	if name, ok := machineNames[m]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", m)
}

func subsystemName(s uint16) string {
	if name, ok := subsystemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", s)
}

// headerInfo reads the fields of the optional header that differ between
// PE32 and PE32+.
func headerInfo(f *pe.File) (entry uint32, subsystem uint16, dirs []pe.DataDirectory) {
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return oh.AddressOfEntryPoint, oh.Subsystem, oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	case *pe.OptionalHeader64:
		return oh.AddressOfEntryPoint, oh.Subsystem, oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	}
	return 0, 0, nil
}

// sectionAt returns the section that maps rva, or nil.
func sectionAt(f *pe.File, rva uint32) *pe.Section {
	for _, s := range f.Sections {
		size := s.VirtualSize
		if s.Size > size {
			size = s.Size
		}
		if s.VirtualAddress <= rva && rva-s.VirtualAddress < size {
			return s
		}
	}
	return nil
}

func sectionNames(f *pe.File) []string {
	names := make([]string, 0, len(f.Sections))
	for _, s := range f.Sections {
		names = append(names, s.Name)
	}
	return names
}

// imports groups the imported functions by library. Library names are
// lower-cased.
func imports(f *pe.File) (map[string][]string, error) {
	symbols, err := f.ImportedSymbols()
	if err != nil {
		return nil, err
	}

	libs := make(map[string][]string)
	for _, sym := range symbols {
		fn, lib, ok := strings.Cut(sym, ":")
		if !ok {
			continue
		}
		lib = strings.ToLower(lib)
		libs[lib] = append(libs[lib], fn)
	}
	return libs, nil
}

// exports lists the names in the export directory.
func exports(f *pe.File, dirs []pe.DataDirectory) ([]string, error) {
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
		return nil, nil
	}
	dir := dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, nil
	}

	table, err := readRVA(f, dir.VirtualAddress, 40)
	if err != nil {
		return nil, fmt.Errorf("export directory: %w", err)
	}
	numberOfNames := binary.LittleEndian.Uint32(table[24:])
	addressOfNames := binary.LittleEndian.Uint32(table[32:])
	if numberOfNames > maxExportNames {
		return nil, fmt.Errorf("export directory: %d names", numberOfNames)
	}
	if numberOfNames == 0 {
		return nil, nil
	}

	ptrs, err := readRVA(f, addressOfNames, 4*numberOfNames)
	if err != nil {
		return nil, fmt.Errorf("export names: %w", err)
	}

	names := make([]string, 0, numberOfNames)
	for i := uint32(0); i < numberOfNames; i++ {
		name, err := readCString(f, binary.LittleEndian.Uint32(ptrs[4*i:]))
		if err != nil {
			return nil, fmt.Errorf("export name %d: %w", i, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// readRVA reads n bytes of the image at rva.
func readRVA(f *pe.File, rva, n uint32) ([]byte, error) {
	s := sectionAt(f, rva)
	if s == nil {
		return nil, fmt.Errorf("rva 0x%x is not mapped", rva)
	}
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	off := rva - s.VirtualAddress
	if uint64(off)+uint64(n) > uint64(len(data)) {
		return nil, fmt.Errorf("rva 0x%x: %d bytes past end of section %s", rva, n, s.Name)
	}
	return data[off : off+n], nil
}

func readCString(f *pe.File, rva uint32) (string, error) {
	s := sectionAt(f, rva)
	if s == nil {
		return "", fmt.Errorf("rva 0x%x is not mapped", rva)
	}
	data, err := s.Data()
	if err != nil {
		return "", err
	}
	off := rva - s.VirtualAddress
	if uint64(off) >= uint64(len(data)) {
		return "", fmt.Errorf("rva 0x%x past end of section %s", rva, s.Name)
	}
	data = data[off:]
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
