package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec4 represents a 4D vector. Used for RGBA colours.
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief Represents an axis-aligned rectangle in screen or texel space.
 */
type Rect struct {
	/** @brief The top-left corner. */
	Min Vec2
	/** @brief The bottom-right corner (exclusive). */
	Max Vec2
}
