// Package location holds the in-memory registry of tracked coordinates.
//
// The registry knows nothing about the wire protocol: operations report an
// Outcome and the protocol package decides how it is written to a client.
// Coordinates are stored as given, range checks belong to the parser.
package location
