package gatt

import (
	"fmt"
	"reflect"
	"testing"
)

func TestAppendName(t *testing.T) {
	cases := []struct {
		curr      []byte
		name      string
		wantBytes []byte
		wantLen   int
	}{
		{
			curr:      []byte{},
			name:      "ABCDE",
			wantBytes: []byte{0x06, typeCompleteName, 'A', 'B', 'C', 'D', 'E'},
			wantLen:   7,
		},
		{
			curr:      []byte("111111111122222222223333"),
			name:      "ABCDE",
			wantBytes: append([]byte("111111111122222222223333"), []byte{0x06, typeCompleteName, 'A', 'B', 'C', 'D', 'E'}...),
			wantLen:   31,
		},
		{
			curr:      []byte("1111111111222222222233333"),
			name:      "ABCDE",
			wantBytes: append([]byte("1111111111222222222233333"), []byte{0x05, typeShortName, 'A', 'B', 'C', 'D'}...),
			wantLen:   31,
		},
	}
	for _, tt := range cases {
		a := (&AdvPacket{tt.curr}).AppendName(tt.name)
		wantBytes := [31]byte{}
		copy(wantBytes[:], tt.wantBytes)
		if a.Bytes() != wantBytes {
			t.Errorf("%q a.AppendName(%q) got %x want %x", tt.curr, tt.name, a.Bytes(), tt.wantBytes)
		}
		if a.Len() != tt.wantLen {
			t.Errorf("%q a.AppendName(%q) got %d want %d", tt.curr, tt.name, a.Len(), tt.wantLen)
		}
	}
}

func TestNameScanResponsePacket(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{
			name: "DfuTarg",
			want: "080944667554617267",
		},
		{
			name: "gophergophergophergophergophergopher",
			want: "1e08676f70686572676f70686572676f70686572676f70686572676f706865",
		},
	}

	for _, tt := range cases {
		pack := NameScanResponsePacket(tt.name)
		if got := fmt.Sprintf("%x", pack); got != tt.want {
			t.Errorf("NameScanResponsePacket(%q): got %q want %q", tt.name, got, tt.want)
		}
	}
}

func TestServiceAdvertisingPacket(t *testing.T) {
	dfu := MustParseUUID("00001530-1212-EFDE-1523-785FEABCD123")
	cases := []struct {
		uu   []UUID
		want string
		fit  []UUID // if different than uu
	}{
		{
			uu:   []UUID{UUID16(0xFAFE)},
			want: "0201060302fefa",
		},
		{
			uu:   []UUID{UUID16(0xFAFE), UUID16(0xFAF9)},
			want: "0201060302fefa0302f9fa",
		},
		{
			uu:   []UUID{dfu},
			want: "020106110623d1bcea5f782315deef121230150000",
		},
		{
			uu:   []UUID{dfu, UUID16(0x180A)},
			want: "020106110623d1bcea5f782315deef12123015000003020a18",
		},
		{
			uu:   []UUID{dfu, dfu},
			want: "020106110623d1bcea5f782315deef121230150000",
			fit:  []UUID{dfu},
		},
	}

	for _, tt := range cases {
		pack, fit := ServiceAdvertisingPacket(tt.uu)
		if got := fmt.Sprintf("%x", pack); got != tt.want {
			t.Errorf("ServiceAdvertisingPacket(%v): got %q want %q", tt.uu, got, tt.want)
		}
		if tt.fit == nil {
			tt.fit = tt.uu
		}
		if !reflect.DeepEqual(fit, tt.fit) {
			t.Errorf("ServiceAdvertisingPacket(%v): fit got %v want %v", tt.uu, fit, tt.fit)
		}
	}
}

func TestAdvertisementUnmarshal(t *testing.T) {
	dfu := MustParseUUID("00001530-1212-EFDE-1523-785FEABCD123")
	adv, _ := ServiceAdvertisingPacket([]UUID{dfu, UUID16(0x180A)})
	scan := NameScanResponsePacket("DfuTarg")

	var a Advertisement
	if err := a.Unmarshal(adv); err != nil {
		t.Fatalf("Unmarshal(adv): %v", err)
	}
	if err := a.Unmarshal(scan); err != nil {
		t.Fatalf("Unmarshal(scan): %v", err)
	}
	if a.LocalName != "DfuTarg" {
		t.Errorf("LocalName: got %q want %q", a.LocalName, "DfuTarg")
	}
	if !a.Connectable {
		t.Errorf("Connectable: got false want true")
	}
	if !a.Advertises(dfu) || !a.Advertises(UUID16(0x180A)) {
		t.Errorf("Services: got %v", a.Services)
	}
	if a.Advertises(UUID16(0x1800)) {
		t.Errorf("Advertises(0x1800): got true")
	}

	for _, bad := range [][]byte{{0x05}, {0x05, 0x09, 'a'}, {0x00, 0x01}} {
		if err := new(Advertisement).Unmarshal(bad); err == nil {
			t.Errorf("Unmarshal(% X): got nil error", bad)
		}
	}
}
