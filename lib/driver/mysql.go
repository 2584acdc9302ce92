package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const mysqlProbe = "SELECT VERSION()"

// MySQL opens raw connections to a MySQL or MariaDB server.
type MySQL struct {
	addr      string
	connector driver.Connector
}

// NewMySQL prepares a MySQL opener from cfg. No connection is made.
func NewMySQL(cfg Config) (*MySQL, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.Timeout = cfg.DialTimeout
	// Without a prepared statement round trip, arguments must be
	// interpolated client side.
	mc.InterpolateParams = true
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: building connector: %w", err)
	}
	return &MySQL{addr: mc.Addr, connector: connector}, nil
}

// Open dials the server and authenticates.
func (m *MySQL) Open(ctx context.Context) (*Conn, error) {
	raw, err := m.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("mysql: connecting to %s: %w", m.addr, err)
	}
	log.WithField("addr", m.addr).Debug("opened mysql connection")
	return newConn(raw, TypeMySQL, mysqlProbe), nil
}
