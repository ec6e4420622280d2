// Package money formats amounts kept in the smallest currency unit for
// display, using the CLDR data shipped with golang.org/x/text.
//
//	money.Format(49900, "INR") // "₹499.00"
//	money.Format(1500, "JPY")  // "¥1,500"
package money
