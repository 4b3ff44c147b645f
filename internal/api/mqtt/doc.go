// Package mqtt exposes the command surface over an MQTT broker.
//
// Commands arrive on <prefix>/cmd, one per message. Every result is published
// on <prefix>/result. The status snapshot is kept retained on <prefix>/status
// and refreshed after each state change; <prefix>/online carries a retained
// "true", replaced by the broker with "false" when the controller drops off.
package mqtt
