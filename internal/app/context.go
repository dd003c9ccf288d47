package app

import (
	"fmt"
	"os"

	"github.com/mrehmanbee22seecs/wasilah2/internal/config"
	"github.com/mrehmanbee22seecs/wasilah2/internal/db"
	"github.com/mrehmanbee22seecs/wasilah2/internal/engine"
	"github.com/mrehmanbee22seecs/wasilah2/internal/migrate"
)

const defaultServiceName = "wasilah"

// OpenEngine opens the workspace database, applies migrations, and wires
// an engine with the workspace configuration. A missing wasilah.yml falls
// back to built-in defaults.
func OpenEngine(workspace string) (engine.Engine, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return engine.Engine{}, err
	}
	if cfg == nil {
		cfg = config.Default(defaultServiceName)
	}
	return engine.New(conn, cfg), nil
}

// InitWorkspace writes a default wasilah.yml. It refuses to overwrite an
// existing config.
func InitWorkspace(workspace, serviceName string) (string, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	path := config.Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config %s already exists", path)
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(config.GenerateDefault(serviceName)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
