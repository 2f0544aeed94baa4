// Package audit records the gateway's audit trail: authentication
// outcomes, authorization denials and every directory mutation.
//
// Events flow through the Logger interface. Two logger implementations
// ship with the gateway: FileLogger appends JSON lines with size-based
// rotation, and Store persists events in SQLite and answers trail
// queries. MultiLogger fans an event to both.
//
// Directory mutations are picked up through the entrychanged notify
// hook, so the recorder sees every add, modify, rename and delete no
// matter which API surface or plugin triggered it. A failing trail
// never blocks a request: recorder writes are warn-and-continue.
package audit
