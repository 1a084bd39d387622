package sqlite3

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/ncruces/go-sqlite3/vfs"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
	"gorm.io/gorm"
)

var (
	initializeOnce sync.Once
	lastError      error
)

func compilerSupported() bool {
	switch runtime.GOOS {
	case "linux", "android",
		"windows", "darwin",
		"freebsd", "netbsd", "dragonfly",
		"solaris", "illumos":
	default:
		return false
	}
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasSSE41
	case "arm64":
		return true
	default:
		return false
	}
}

// Initialize configures the wazero runtime behind SQLite. It must run before
// the first New to take effect; later calls return the first result. An empty
// cacheDir disables the on-disk compilation cache.
func Initialize(cacheDir string, memoryPages uint32) error {
	initializeOnce.Do(func() {
		var cfg wazero.RuntimeConfig
		if compilerSupported() {
			cfg = wazero.NewRuntimeConfigCompiler()
		} else {
			cfg = wazero.NewRuntimeConfigInterpreter()
		}
		if cacheDir != "" {
			cache, err := wazero.NewCompilationCacheWithDir(cacheDir)
			if err != nil {
				lastError = fmt.Errorf("opening compilation cache: %w", err)
				return
			}
			cfg = cfg.WithCompilationCache(cache)
		}
		if memoryPages > 0 {
			// one page is 64KiB
			cfg = cfg.WithMemoryLimitPages(memoryPages)
		}
		sqlite3.RuntimeConfig = cfg

		lastError = sqlite3.Initialize()
	})
	return lastError
}

func openSQLite(logger *zap.Logger, dbPath string) gorm.Dialector {
	logger.Debug("Opening SQLite via wazero",
		zap.String("path", dbPath),
		zap.Bool("compiler", compilerSupported()),
		zap.Bool("lock", vfs.SupportsFileLocking),
		zap.Bool("shm", vfs.SupportsSharedMemory),
	)

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(1)&_txlock=immediate", dbPath)
	return gormlite.Open(dsn)
}
