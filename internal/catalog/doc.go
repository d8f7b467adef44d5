// Package catalog defines the canonical records of the tune catalog, the
// closed enumerations constraining their categorical fields, and the raw,
// loosely typed source records they are normalized from.
package catalog
