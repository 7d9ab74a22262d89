package hostabi_test

import (
	"testing"

	"github.com/nsoload/andromap/internal/hostabi"
)

var installedNames = []string{
	"open", "close", "read", "write", "lstat", "fstat", "mkdir", "chmod",
	"umask", "ftruncate", "malloc", "free", "strncpy", "gettimeofday",
	"__errno", "arc4random", "__system_property_get",
	"pthread_create", "pthread_once", "pthread_mutex_lock", "pthread_mutex_unlock",
	"pthread_rwlock_init", "pthread_rwlock_destroy", "pthread_rwlock_rdlock",
	"pthread_rwlock_wrlock", "pthread_rwlock_unlock",
	"dlopen", "dlsym", "dlclose",
}

func TestLookupResolvesEveryInstalledName(t *testing.T) {
	for _, name := range installedNames {
		addr, ok := hostabi.Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) = not found", name)
			continue
		}
		if addr == 0 {
			t.Errorf("Lookup(%q) returned a nil address", name)
		}
	}
}

func TestLookupStripsVersionSuffix(t *testing.T) {
	addr, ok := hostabi.Lookup("open@LIBC")
	if !ok {
		t.Fatal("Lookup(open@LIBC) = not found")
	}
	plain, _ := hostabi.Lookup("open")
	if addr != plain {
		t.Errorf("Lookup(open@LIBC) = %#x, want %#x", addr, plain)
	}
}

func TestLookupUnknownName(t *testing.T) {
	if _, ok := hostabi.Lookup("totally_made_up_symbol"); ok {
		t.Error("Lookup(totally_made_up_symbol) = found, want not found")
	}
}

func TestUndefinedSymbolIsNonNil(t *testing.T) {
	if hostabi.UndefinedSymbol() == 0 {
		t.Error("UndefinedSymbol() = 0")
	}
}
