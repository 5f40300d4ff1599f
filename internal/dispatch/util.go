package dispatch

import "strconv"

func tcpAddr(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

func udpAddr(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
