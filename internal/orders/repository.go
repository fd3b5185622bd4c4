package orders

import "errors"

var ErrOrderNotFound = errors.New("order not found")

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}
