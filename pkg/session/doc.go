/*
Package session holds the live state of one interaction with the remote application.

A Session carries the identity of the simulated user, the latest screen, the
accumulated search data and an execution log. Screens are replaced wholesale
after every exchange and never modified in place, so Clone can fork a session
for discovery. Manager serializes runs that act as the same remote user, with
optional distributed locking across replicas.
*/
package session
