// services/hal/topics.go
package hal

import "rangewatch-go/bus"

// hal/cap/<kind>/<name>/...

func topicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func topicHALState() bus.Topic  { return bus.T("hal", "state") }

func capBase(kind, name string) bus.Topic { return bus.T("hal", "cap", kind, name) }

func capInfo(kind, name string) bus.Topic   { return capBase(kind, name).Append("info") }
func capStatus(kind, name string) bus.Topic { return capBase(kind, name).Append("status") }
func capValue(kind, name string) bus.Topic  { return capBase(kind, name).Append("value") }
func capEvent(kind, name string) bus.Topic  { return capBase(kind, name).Append("event") }

// hal/cap/<kind>/<name>/control/<verb>
func capCtrl(kind, name, verb string) bus.Topic {
	return capBase(kind, name).Append("control", verb)
}

// hal/cap/+/+/control/+
func ctrlWildcard() bus.Topic {
	return bus.T("hal", "cap", "+", "+", "control", "+")
}

// CtrlTopic is the public form used by callers that drive capabilities.
func CtrlTopic(kind, name, verb string) bus.Topic { return capCtrl(kind, name, verb) }
