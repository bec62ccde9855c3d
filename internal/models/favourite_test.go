package models

import "testing"

func TestEncodeDecodeKeys(t *testing.T) {
	keys := []FavouriteKey{
		{Name: "Sky Sports", Category: "Sports"},
		{Name: "BBC One", Category: "News"},
	}
	payload, err := EncodeKeys(keys)
	if err != nil {
		t.Fatalf("EncodeKeys failed: %v", err)
	}
	if payload != `[["BBC One","News"],["Sky Sports","Sports"]]` {
		t.Errorf("unexpected payload %s", payload)
	}
	if keys[0].Name != "Sky Sports" {
		t.Error("EncodeKeys must not reorder its argument")
	}

	got, err := DecodeKeys(`[["BBC One","News"],["BBC One","News"],["BBC One","Kids"]]`)
	if err != nil {
		t.Fatalf("DecodeKeys failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected duplicate pairs to collapse, got %v", got)
	}
}

func TestDecodeKeysErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "empty", payload: "", wantErr: false},
		{name: "empty list", payload: "[]", wantErr: false},
		{name: "three elements", payload: `[["a","b","c"]]`, wantErr: true},
		{name: "not a list", payload: `"a"`, wantErr: true},
		{name: "truncated", payload: `[["a","b"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeKeys(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeKeys(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
		})
	}
}

func TestChannelKey(t *testing.T) {
	a := Channel{Name: "BBC One", URL: "http://a", TvgID: "x", Category: "News"}
	b := Channel{Name: "BBC One", URL: "http://b", TvgID: "y", Category: "News"}
	if a.Key() != b.Key() {
		t.Error("channels differing only in url and tvg-id must share a key")
	}
}
