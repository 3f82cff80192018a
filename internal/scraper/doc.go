// Package scraper fetches civic web pages and turns them into news items.
//
// Each upstream (a school district site, a city site) is a Scraper with its
// own Strategy. A Scraper issues one request per run under an 8 second
// timeout, selects candidate fragments with the strategy's prioritised CSS
// selectors, keeps titles longer than five characters that hit the keyword
// allow-list, classifies them, and returns at most five items in document
// order. Failures never reach the caller; they surface as an empty result.
package scraper
