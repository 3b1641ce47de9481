package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "graystore"

// Topics builds graystore MQTT topics under a prefix.
//
//	topics := mqtt.Topics{Prefix: "graystore"}
//	topics.Change("orm_default.sqlite", "orm_Item_t")
//	// Returns: "graystore/change/orm_default.sqlite/orm_Item_t"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Change returns the topic for change events of one table.
func (t Topics) Change(database, table string) string {
	return fmt.Sprintf("%s/change/%s/%s", t.prefix(), database, table)
}

// Status returns the retained online/offline status topic.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// AllChanges returns a wildcard subscription covering every change topic.
func (t Topics) AllChanges() string {
	return t.prefix() + "/change/#"
}
