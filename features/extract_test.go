package features_test

import (
	"bytes"
	"context"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/malbatch/features"
	"github.com/MasterOfBinary/malbatch/sample"
)

const (
	sectionRVA    = 0x1000
	sectionOffset = 0x200
	sectionSize   = 0x200
)

// buildPE returns a minimal PE32 image with one .text section holding an
// import table (KERNEL32.dll!CreateFileA), an export table (Run) and a few
// strings of interest.
func buildPE(t *testing.T) []byte {
	t.Helper()

	sec := make([]byte, sectionSize)
	le := binary.LittleEndian

	// Import descriptor for KERNEL32.dll, followed by a zero descriptor.
	le.PutUint32(sec[0x00:], sectionRVA+0x40) // OriginalFirstThunk
	le.PutUint32(sec[0x0c:], sectionRVA+0x80) // Name
	le.PutUint32(sec[0x10:], sectionRVA+0x40) // FirstThunk
	le.PutUint32(sec[0x40:], sectionRVA+0x60) // hint/name of CreateFileA
	copy(sec[0x62:], "CreateFileA\x00")
	copy(sec[0x80:], "KERNEL32.dll\x00")

	// Export directory with one name.
	le.PutUint32(sec[0xa0+24:], 1)               // NumberOfNames
	le.PutUint32(sec[0xa0+32:], sectionRVA+0xd0) // AddressOfNames
	le.PutUint32(sec[0xd0:], sectionRVA+0xe0)
	copy(sec[0xe0:], "Run\x00")

	copy(sec[0x100:], "C:\\Windows\\System32\\evil.dll\x00")
	copy(sec[0x130:], "http://Evil.Example.com/payload.bin\x00")
	copy(sec[0x160:], "HKEY_LOCAL_MACHINE\\Software\\Run\x00")

	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	copy(dos, "MZ")
	le.PutUint32(dos[0x3c:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	var oh pe.OptionalHeader32
	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}
	must(binary.Write(&buf, le, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	}))

	oh = pe.OptionalHeader32{
		Magic:               0x10b,
		AddressOfEntryPoint: sectionRVA + 0x180,
		ImageBase:           0x400000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x2000,
		SizeOfHeaders:       sectionOffset,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{VirtualAddress: sectionRVA + 0xa0, Size: 40}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT] = pe.DataDirectory{VirtualAddress: sectionRVA, Size: 40}
	must(binary.Write(&buf, le, oh))

	var name [8]uint8
	copy(name[:], ".text")
	must(binary.Write(&buf, le, pe.SectionHeader32{
		Name:             name,
		VirtualSize:      sectionSize,
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    sectionSize,
		PointerToRawData: sectionOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	}))

	buf.Write(make([]byte, sectionOffset-buf.Len()))
	buf.Write(sec)
	return buf.Bytes()
}

func TestExtractBytes(t *testing.T) {
	data := buildPE(t)

	rec, err := features.ExtractBytes(data)
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), rec.Size)
	assert.Equal(t, "I386", rec.Machine)
	assert.Equal(t, "WINDOWS_GUI", rec.Subsystem)
	assert.Equal(t, ".text", rec.Entry)
	assert.Equal(t, []string{".text"}, rec.SectionNames)

	assert.Equal(t, []string{"kernel32.dll"}, rec.ImportLibs)
	assert.Equal(t, []string{"CreateFileA"}, rec.ImportFuncs)
	assert.Equal(t, 1, rec.Imports)
	assert.Equal(t, []string{"Run"}, rec.ExportFuncs)
	assert.Equal(t, 1, rec.Exports)

	assert.Equal(t, []string{`C:\Windows\System32\evil.dll`}, rec.Paths)
	assert.Equal(t, []string{"evil.example.com"}, rec.URLs)
	assert.Equal(t, []string{`HKEY_LOCAL_MACHINE\Software\Run`}, rec.Registry)
	assert.Equal(t, 1, rec.MZ)

	assert.GreaterOrEqual(t, rec.NumStrings, 5)
	assert.Positive(t, rec.Printables)
	assert.InDelta(t, float64(rec.Printables)/float64(rec.NumStrings), rec.AvgLength, 1e-9)
	assert.Greater(t, rec.Entropy, 0.0)
	assert.LessOrEqual(t, rec.Entropy, 7.0)
}

func TestExtract_NotPE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "text.exe")
	require.NoError(t, os.WriteFile(path, []byte("just some text, no headers"), 0o600))

	_, err := features.Extract(path)
	assert.ErrorIs(t, err, features.ErrNotPE)

	_, err = features.Extract(filepath.Join(dir, "missing.exe"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, features.ErrNotPE)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.exe")
	require.NoError(t, os.WriteFile(path, buildPE(t), 0o600))

	s, err := sample.New(path)
	require.NoError(t, err)

	v, err := features.Scan.Apply(context.Background(), nil, s)
	require.NoError(t, err)

	rec, ok := v.(*features.Record)
	require.True(t, ok, "value is %T", v)
	assert.Equal(t, "I386", rec.Machine)
}
