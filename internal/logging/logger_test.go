package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	stateMu.Lock()
	logsDir = ""
	debugOn = false
	logLevel = LevelInfo
	stateMu.Unlock()
}

func TestAllCategoriesLog(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Init(tempDir, true); err != nil {
		t.Fatalf("Init: %v", err)
	}

	categories := []Category{
		CategoryVocabulary, CategoryTextEncoder, CategoryLabelBank,
		CategoryCache, CategorySeed, CategoryProgressive, CategoryRelevance,
		CategoryNeighbors, CategoryScorer, CategoryHierarchy, CategoryOrchestrator,
	}
	for _, cat := range categories {
		l := Get(cat)
		l.Info("info message for %s", cat)
		l.Debug("debug message for %s", cat)
		l.Warn("warn message for %s", cat)
	}
	CloseAll()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, cat := range categories {
		found := false
		for _, e := range entries {
			if strings.Contains(e.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(tempDir, e.Name()))
				if err != nil {
					t.Errorf("read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("no log file found for category %s", cat)
		}
	}
}

func TestInit_EmptyDirDisablesFileLogging(t *testing.T) {
	resetState(t)

	if err := Init("", false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	l := Get(CategoryScorer)
	l.Info("should be a no-op")
	l.Debug("should be a no-op")

	stateMu.RLock()
	dir := logsDir
	stateMu.RUnlock()
	if dir != "" {
		t.Errorf("expected empty logsDir, got %q", dir)
	}
}

func TestInit_DebugFalseSuppressesDebugLevel(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Init(tempDir, false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	l := Get(CategoryRelevance)
	l.Debug("this should not appear")
	l.Info("this should appear")
	CloseAll()

	data, err := os.ReadFile(filepath.Join(tempDir, "relevance.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "this should not appear") {
		t.Error("debug line logged despite debug=false")
	}
	if !strings.Contains(string(data), "this should appear") {
		t.Error("info line missing")
	}
}

func TestTimerLogging(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()
	if err := Init(tempDir, true); err != nil {
		t.Fatalf("Init: %v", err)
	}

	timer := StartTimer(CategoryProgressive, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()
	if elapsed <= 0 {
		t.Error("timer should record a non-zero duration")
	}
	CloseAll()
}

func TestGet_ReturnsSameLoggerForCategory(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()
	if err := Init(tempDir, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer CloseAll()

	a := Get(CategoryCache)
	b := Get(CategoryCache)
	if a != b {
		t.Error("expected Get to return the same *Logger instance for repeated calls")
	}
}
