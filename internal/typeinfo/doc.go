// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains the reflection code of sqlbuilder. As much as
possible, reflection is limited to this package. It maps the members of struct
types to column names, caches that mapping per type, and assigns raw driver
values to members, optionally through registered converters.
*/
package typeinfo
