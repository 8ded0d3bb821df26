package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/iangodin/dhcpdb/wire"
)

// MySQLStore is the production backend, grounded directly on
// original_source/backend.cpp's schema (dhcp_host, dhcp_options,
// dhcp_lease) and reachable operations, speaking it through
// database/sql + github.com/go-sql-driver/mysql instead of the
// original's raw libmysqlclient calls. Transaction shape (BeginTx /
// commit / rollback around a single logical operation) follows the
// context-scoped-transaction idiom in canonical-maas's handler4.go.
type MySQLStore struct {
	db *sql.DB
}

// DSN builds a go-sql-driver/mysql data source name from the
// configuration keys named in spec.md §6.3 (dbhost, database, dbuser,
// dbpassword).
func DSN(host, database, user, password string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, password, host, database)
}

// OpenMySQLStore opens (and pings) a MySQL-backed Store.
func OpenMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening mysql: %s", ErrStore, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting to mysql: %s", ErrStore, err)
	}
	return &MySQLStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

// mysqlSession holds one pooled connection for the lifetime of a worker,
// the Go-idiomatic analogue of the original's thread-local MYSQL*
// (spec.md §9: re-architected as an explicit per-worker owned handle
// rather than a process-wide thread-id map).
type mysqlSession struct {
	conn *sql.Conn
}

// NewSession checks out a dedicated pooled connection for the caller.
func (s *MySQLStore) NewSession(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: starting session: %s", ErrStore, err)
	}
	return &mysqlSession{conn: conn}, nil
}

func (m *mysqlSession) Close() error { return m.conn.Close() }

func macBytes(mac net.HardwareAddr) []byte {
	if len(mac) == 6 {
		return []byte(mac)
	}
	out := make([]byte, 6)
	copy(out, mac)
	return out
}

func (m *mysqlSession) GetIPs(ctx context.Context, mac net.HardwareAddr, availableOnly bool) ([]net.IP, error) {
	mb := macBytes(mac)
	query := `SELECT ip_addr FROM dhcp_host
		WHERE (mac_addr = ? OR mac_addr = ?)`
	args := []any{mb, macBytes(WildcardMAC)}
	if availableOnly {
		query += ` AND ip_addr NOT IN (
			SELECT ip_addr FROM dhcp_lease WHERE mac_addr <> ? AND expiration > NOW()
		)`
		args = append(args, mb)
	}
	query += ` ORDER BY mac_addr DESC, ip_addr ASC`

	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get_ips: %s", ErrStore, err)
	}
	defer rows.Close()

	var out []net.IP
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: get_ips: %s", ErrStore, err)
		}
		out = append(out, uint32ToIP(n))
	}
	return out, rows.Err()
}

func (m *mysqlSession) GetOptions(ctx context.Context, ip net.IP) ([]wire.Option, error) {
	n, err := ipToUint32(ip)
	if err != nil {
		return nil, err
	}
	rows, err := m.conn.QueryContext(ctx,
		`SELECT options FROM dhcp_options WHERE ? >= ip_addr_from AND ? <= ip_addr_to`, n, n)
	if err != nil {
		return nil, fmt.Errorf("%w: get_options: %s", ErrStore, err)
	}
	defer rows.Close()

	var out []wire.Option
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("%w: get_options: %s", ErrStore, err)
		}
		if len(blob) < 2 {
			continue
		}
		out = append(out, wire.Option{ID: blob[0], Payload: append([]byte(nil), blob[2:]...)})
	}
	return out, rows.Err()
}

func (m *mysqlSession) AddHost(ctx context.Context, ip net.IP, mac net.HardwareAddr) error {
	n, err := ipToUint32(ip)
	if err != nil {
		return err
	}
	_, err = m.conn.ExecContext(ctx,
		`INSERT INTO dhcp_host (ip_addr, mac_addr) VALUES (?, ?)`, n, macBytes(mac))
	if err != nil {
		return fmt.Errorf("%w: add_host: %s", ErrStore, err)
	}
	return nil
}

func (m *mysqlSession) RemoveHost(ctx context.Context, ip net.IP) error {
	n, err := ipToUint32(ip)
	if err != nil {
		return err
	}
	_, err = m.conn.ExecContext(ctx, `DELETE FROM dhcp_host WHERE ip_addr = ?`, n)
	if err != nil {
		return fmt.Errorf("%w: remove_host: %s", ErrStore, err)
	}
	return nil
}

func (m *mysqlSession) AddOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option, replace bool) error {
	lo, err := ipToUint32(ipLo)
	if err != nil {
		return err
	}
	hi, err := ipToUint32(ipHi)
	if err != nil {
		return err
	}
	if replace {
		if _, err := m.conn.ExecContext(ctx,
			`DELETE FROM dhcp_options WHERE ip_addr_from = ? AND ip_addr_to = ? AND SUBSTRING(options, 1, 1) = ?`,
			lo, hi, []byte{opt.ID}); err != nil {
			return fmt.Errorf("%w: add_option (replace): %s", ErrStore, err)
		}
	}
	_, err = m.conn.ExecContext(ctx,
		`INSERT INTO dhcp_options (ip_addr_from, ip_addr_to, options) VALUES (?, ?, ?)`,
		lo, hi, opt.Bytes())
	if err != nil {
		return fmt.Errorf("%w: add_option: %s", ErrStore, err)
	}
	return nil
}

func (m *mysqlSession) RemoveOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option) error {
	lo, err := ipToUint32(ipLo)
	if err != nil {
		return err
	}
	hi, err := ipToUint32(ipHi)
	if err != nil {
		return err
	}
	_, err = m.conn.ExecContext(ctx,
		`DELETE FROM dhcp_options WHERE ip_addr_from = ? AND ip_addr_to = ? AND options = ?`,
		lo, hi, opt.Bytes())
	if err != nil {
		return fmt.Errorf("%w: remove_option: %s", ErrStore, err)
	}
	return nil
}

func (m *mysqlSession) AllHosts(ctx context.Context) ([]Reservation, error) {
	rows, err := m.conn.QueryContext(ctx, `SELECT ip_addr, mac_addr FROM dhcp_host ORDER BY ip_addr`)
	if err != nil {
		return nil, fmt.Errorf("%w: get_all_hosts: %s", ErrStore, err)
	}
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		var n uint32
		var mac []byte
		if err := rows.Scan(&n, &mac); err != nil {
			return nil, fmt.Errorf("%w: get_all_hosts: %s", ErrStore, err)
		}
		out = append(out, Reservation{IP: uint32ToIP(n), MAC: net.HardwareAddr(mac)})
	}
	return out, rows.Err()
}

func (m *mysqlSession) AllOptions(ctx context.Context) ([]OptionTemplate, error) {
	rows, err := m.conn.QueryContext(ctx, `SELECT ip_addr_from, ip_addr_to, options FROM dhcp_options ORDER BY ip_addr_from`)
	if err != nil {
		return nil, fmt.Errorf("%w: get_all_options: %s", ErrStore, err)
	}
	defer rows.Close()
	var out []OptionTemplate
	for rows.Next() {
		var lo, hi uint32
		var blob []byte
		if err := rows.Scan(&lo, &hi, &blob); err != nil {
			return nil, fmt.Errorf("%w: get_all_options: %s", ErrStore, err)
		}
		if len(blob) < 2 {
			continue
		}
		out = append(out, OptionTemplate{
			IPLo:   uint32ToIP(lo),
			IPHi:   uint32ToIP(hi),
			Option: wire.Option{ID: blob[0], Payload: append([]byte(nil), blob[2:]...)},
		})
	}
	return out, rows.Err()
}

func (m *mysqlSession) AllLeases(ctx context.Context) ([]Lease, error) {
	rows, err := m.conn.QueryContext(ctx, `SELECT ip_addr, mac_addr, expiration FROM dhcp_lease ORDER BY ip_addr`)
	if err != nil {
		return nil, fmt.Errorf("%w: get_all_leases: %s", ErrStore, err)
	}
	defer rows.Close()
	var out []Lease
	for rows.Next() {
		var n uint32
		var mac []byte
		var exp time.Time
		if err := rows.Scan(&n, &mac, &exp); err != nil {
			return nil, fmt.Errorf("%w: get_all_leases: %s", ErrStore, err)
		}
		out = append(out, Lease{IP: uint32ToIP(n), MAC: net.HardwareAddr(mac), ExpiresAt: exp})
	}
	return out, rows.Err()
}

// AcquireLease resolves spec.md §9's lease-refresh-ambiguity open
// question toward the intended semantics: a row-locking transaction
// replaces the original's racy INSERT IGNORE + affected-rows check.
func (m *mysqlSession) AcquireLease(ctx context.Context, ip net.IP, mac net.HardwareAddr, seconds uint32) (bool, error) {
	n, err := ipToUint32(ip)
	if err != nil {
		return false, err
	}
	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: acquire_lease: %s", ErrStore, err)
	}
	defer tx.Rollback()

	var existing []byte
	err = tx.QueryRowContext(ctx, `SELECT mac_addr FROM dhcp_lease WHERE ip_addr = ? FOR UPDATE`, n).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dhcp_lease (ip_addr, mac_addr, expiration) VALUES (?, ?, TIMESTAMPADD(SECOND, ?, NOW()))`,
			n, macBytes(mac), seconds); err != nil {
			return false, fmt.Errorf("%w: acquire_lease insert: %s", ErrStore, err)
		}
	case err != nil:
		return false, fmt.Errorf("%w: acquire_lease: %s", ErrStore, err)
	default:
		if !macEqual(existing, mac) {
			return false, nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE dhcp_lease SET expiration = TIMESTAMPADD(SECOND, ?, NOW()) WHERE ip_addr = ? AND mac_addr = ?`,
			seconds, n, macBytes(mac)); err != nil {
			return false, fmt.Errorf("%w: acquire_lease update: %s", ErrStore, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: acquire_lease commit: %s", ErrStore, err)
	}
	return true, nil
}

func (m *mysqlSession) ReleaseLease(ctx context.Context, ip net.IP, mac net.HardwareAddr) (bool, error) {
	n, err := ipToUint32(ip)
	if err != nil {
		return false, err
	}
	res, err := m.conn.ExecContext(ctx,
		`DELETE FROM dhcp_lease WHERE ip_addr = ? AND mac_addr = ?`, n, macBytes(mac))
	if err != nil {
		return false, fmt.Errorf("%w: release_lease: %s", ErrStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: release_lease: %s", ErrStore, err)
	}
	return affected > 0, nil
}

func macEqual(a []byte, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
