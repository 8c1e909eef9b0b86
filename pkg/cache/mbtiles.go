package cache

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// MBTiles is a tile store in the mbtiles sqlite schema, usable both as a
// server-side cache and as a download target. Rows are stored in TMS
// order; Get and Put take XYZ coordinates and flip internally.
type MBTiles struct {
	db *sql.DB
}

// Open opens or creates an mbtiles file. name and format go into the
// metadata table when the file is fresh.
func Open(path, name, format string) (*MBTiles, error) {
	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, err
	}

	m := &MBTiles{db: db}

	if err := m.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := m.ensureMeta(name, format); err != nil {
		db.Close()
		return nil, err
	}

	return m, nil
}

func (m *MBTiles) Close() error {
	return m.db.Close()
}

func (m *MBTiles) createTables() error {
	_, err := m.db.Exec("CREATE TABLE IF NOT EXISTS tiles (zoom_level INTEGER NOT NULL,tile_column INTEGER NOT NULL,tile_row INTEGER NOT NULL,tile_data BLOB NOT NULL,UNIQUE (zoom_level, tile_column, tile_row));")

	if err != nil {
		return err
	}

	_, err = m.db.Exec("CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT);")

	return err
}

func (m *MBTiles) ensureMeta(name, format string) error {
	var n int

	if err := m.db.QueryRow("SELECT count(*) FROM metadata").Scan(&n); err != nil {
		return err
	}

	if n > 0 {
		return nil
	}

	return m.PutMeta(map[string]string{
		"version": "1.1",
		"name":    name,
		"format":  format,
		"scheme":  "tms",
	})
}

// Get returns the stored tile data, or nil without an error on a miss.
func (m *MBTiles) Get(z, x, y int) ([]byte, error) {
	y = 1<<z - y - 1

	row, err := m.db.Query("SELECT tile_data FROM tiles WHERE zoom_level=? and tile_column=? and tile_row=?", z, x, y)
	if err != nil {
		return nil, err
	}

	defer row.Close()

	if row.Next() {
		var data []byte
		if err = row.Scan(&data); err != nil {
			return nil, err
		}

		return data, nil
	}

	return nil, nil
}

func (m *MBTiles) Put(z, x, y int, data []byte) error {
	y = 1<<z - y - 1

	_, err := m.db.Exec("INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) values (?,?,?,?)", z, x, y, data)

	return err
}

func (m *MBTiles) PutMeta(meta map[string]string) error {
	for k, v := range meta {
		if _, err := m.db.Exec("INSERT INTO metadata (name, value) values (?,?)", k, v); err != nil {
			return err
		}
	}

	return nil
}

// Meta reads the metadata table.
func (m *MBTiles) Meta() (map[string]string, error) {
	row, err := m.db.Query("SELECT name,value FROM metadata ORDER BY name")
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)

	defer row.Close()
	for row.Next() {
		var name string
		var value string
		if err = row.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}

	return meta, nil
}
