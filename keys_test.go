package arcache

import "testing"

func TestKeyBuilder(t *testing.T) {
	cases := []struct {
		ns, delim   string
		key, group  string
		wantKey     string
		wantInvalid string
	}{
		{"", "", "user:1", "users", "user:1", "InvKey|users"},
		{"app", "", "user:1", "users", "app|user:1", "app|InvKey|users"},
		{"app", "::", "k", "g", "app::k", "app::InvKey::g"},
	}
	for _, tc := range cases {
		kb := NewKeyBuilder(tc.ns, tc.delim)
		if got := kb.BackendKey(tc.key); got != tc.wantKey {
			t.Errorf("BackendKey(%q) ns=%q = %q want %q", tc.key, tc.ns, got, tc.wantKey)
		}
		if got := kb.InvalidationBackendKey(tc.group); got != tc.wantInvalid {
			t.Errorf("InvalidationBackendKey(%q) ns=%q = %q want %q", tc.group, tc.ns, got, tc.wantInvalid)
		}
	}
}

func TestKeysFromClient(t *testing.T) {
	cc := newTestClient(t, newMemBackend(), func(o *Options[string]) {
		o.Namespace = "svc"
		o.KeyDelimiter = ":"
	})
	kb := cc.Keys()
	if kb.Namespace() != "svc" || kb.Delimiter() != ":" {
		t.Fatalf("Keys() = %+v", kb)
	}
	// a group named like a key never collides with it
	if kb.BackendKey("g") == kb.InvalidationBackendKey("g") {
		t.Fatalf("object and group keys collide")
	}
}
