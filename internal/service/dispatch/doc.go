// Package dispatch turns slash-delimited command strings into engine
// operations and renders every outcome as a Result.
//
// Commands have the form TAG[/PARAM[/VALUE]]:
//
//	BUT                    selections of every group
//	BUT/<group>            selection of one group
//	BUT/<button>           state of one button
//	BUT/<group>/<button>   activate a button, OFF resets the group
//	BUT/<button>/on|off    set a button through its owning group
//	INF                    status snapshot of banks, groups and preset
//	CFG                    preset validity and source
//	CFG/reload             reload presets with the fallback policy
//	<IO>/bits[/<value>]    read or write a whole bank (MOS, REL, OPT, TTL, INP)
//	<IO>/<n>[/on|off]      read or write line n, numbered from 1
//
// Transports never see Go errors: a failed command still yields a Result
// with an "ERR: ..." message and an HTTP-like return code.
package dispatch
